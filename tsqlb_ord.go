package tsqlb

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	DirNone Dir = 0
	DirAsc  Dir = 1
	DirDesc Dir = 2
)

// Short for "direction". Enum for ordering direction: none, "asc", "desc".
// `DirNone` orders ascending, the SQL default.
type Dir byte

// Implement `fmt.Stringer` for debug purposes.
func (self Dir) String() string {
	switch self {
	default:
		return ``
	case DirAsc:
		return `asc`
	case DirDesc:
		return `desc`
	}
}

// Keyword used in generated SQL. Never empty.
func (self Dir) Keyword() string {
	if self == DirDesc {
		return `DESC`
	}
	return `ASC`
}

// Parses from a string, which must be empty, "asc" or "desc", in any case.
func (self *Dir) Parse(src string) error {
	switch {
	case src == ``:
		*self = DirNone
	case strings.EqualFold(src, `asc`):
		*self = DirAsc
	case strings.EqualFold(src, `desc`):
		*self = DirDesc
	default:
		return ErrInvalidInput.
			while(`parsing order direction`).
			because(errf(`unrecognized direction %q`, src))
	}
	return nil
}

// Implement `encoding.TextMarshaler`.
func (self Dir) MarshalText() ([]byte, error) { return []byte(self.String()), nil }

// Implement `encoding.TextUnmarshaler`.
func (self *Dir) UnmarshalText(src []byte) error { return self.Parse(string(src)) }

// Implement `fmt.GoStringer` for debug purposes.
func (self Dir) GoString() string {
	switch self {
	default:
		return `tsqlb.DirNone`
	case DirAsc:
		return `tsqlb.DirAsc`
	case DirDesc:
		return `tsqlb.DirDesc`
	}
}

var ordReg = regexp.MustCompile(`^\s*(\w+)(?i)(?:\s+(asc|desc))?\s*$`)

/*
Short for "ordering". Names an entity member (not a column) and a direction.
Converted to SQL by `(*Qb).OrderByOrds`, which validates the member against the
entity.
*/
type Ord struct {
	Field string
	Dir   Dir
}

// Shortcut for `Ord{field, DirAsc}`.
func OrdAsc(field string) Ord { return Ord{field, DirAsc} }

// Shortcut for `Ord{field, DirDesc}`.
func OrdDesc(field string) Ord { return Ord{field, DirDesc} }

// Implement `fmt.Stringer`. The output is accepted by `.Parse`.
func (self Ord) String() string {
	if self.Dir == DirNone {
		return self.Field
	}
	return self.Field + ` ` + self.Dir.String()
}

/*
Parses an ordering string such as "Name" or "CreatedAt desc". The direction is
case-insensitive.
*/
func (self *Ord) Parse(src string) error {
	match := ordReg.FindStringSubmatch(src)
	if match == nil {
		return ErrInvalidInput.
			while(`parsing ordering`).
			because(errf(`%q is not a valid ordering string; expected format: "<Member> [asc|desc]"`, src))
	}
	self.Field = match[1]
	return self.Dir.Parse(match[2])
}

/*
Short for "orderings". Typically decoded from client input:

	var ords Ords
	err := json.Unmarshal([]byte(`["Name", "Age desc"]`), &ords)

	query, err := Select[Person](nil, nil).OrderByOrds(ords).Query()
*/
type Ords []Ord

/*
Parses a string slice, which may come from URL queries, form-encoded data, and
so on. Ignores empty and whitespace-only strings.
*/
func (self *Ords) ParseSlice(src []string) error {
	var out Ords
	for _, val := range src {
		if strings.TrimSpace(val) == `` {
			continue
		}
		var ord Ord
		err := ord.Parse(val)
		if err != nil {
			return err
		}
		out = append(out, ord)
	}
	*self = out
	return nil
}

// Implement `json.Unmarshaler`. The input must be an array of strings.
func (self *Ords) UnmarshalJSON(src []byte) error {
	var vals []string
	err := json.Unmarshal(src, &vals)
	if err != nil {
		return ErrInvalidInput.while(`decoding orderings`).because(err)
	}
	return self.ParseSlice(vals)
}

// Implement `json.Marshaler`, symmetric with `.UnmarshalJSON`.
func (self Ords) MarshalJSON() ([]byte, error) {
	if self == nil {
		return []byte(`null`), nil
	}
	vals := make([]string, len(self))
	for ind, val := range self {
		vals[ind] = val.String()
	}
	return json.Marshal(vals)
}
