package tsqlb

import (
	"database/sql"
	r "reflect"
	"strings"
)

// Named statement parameter. `.Name` excludes the "@" prefix.
type Param struct {
	Name string
	Val  any
}

// Placeholder as it appears in SQL text, such as "@Name".
func (self Param) Placeholder() string { return placeholder(self.Name) }

/*
Ordered parameters of one statement. Names are unique and, as in T-SQL,
case-insensitive. Binding an existing name to a different value is an error
rather than an overwrite; see `(*Params).Add`.
*/
type Params []Param

// Finds a parameter by name.
func (self Params) Get(name string) (any, bool) {
	ind := self.index(name)
	if ind < 0 {
		return nil, false
	}
	return self[ind].Val, true
}

// Reports whether the parameter exists.
func (self Params) Has(name string) bool { return self.index(name) >= 0 }

// Parameter names in order.
func (self Params) Names() []string {
	if self == nil {
		return nil
	}
	out := make([]string, len(self))
	for ind, val := range self {
		out[ind] = val.Name
	}
	return out
}

/*
Converts to `sql.NamedArg` values suitable for `database/sql` drivers that
support named parameters.
*/
func (self Params) Args() []any {
	if len(self) == 0 {
		return nil
	}
	out := make([]any, len(self))
	for ind, val := range self {
		out[ind] = sql.Named(val.Name, val.Val)
	}
	return out
}

func (self Params) index(name string) int {
	for ind, val := range self {
		if strings.EqualFold(val.Name, name) {
			return ind
		}
	}
	return -1
}

/*
Appends a parameter. Re-adding an existing name with a deeply equal value is a
nop, which lets the same captured member appear twice in one statement. Any
other collision fails with `ErrParamConflict`.
*/
func (self *Params) Add(name string, val any) error {
	val = normNil(val)

	ind := self.index(name)
	if ind < 0 {
		*self = append(*self, Param{name, val})
		return nil
	}

	prev := (*self)[ind].Val
	if r.DeepEqual(prev, val) {
		return nil
	}
	return ErrParamConflict.while(`binding parameter`).because(errf(
		`parameter %q is already bound to %#v, can't rebind to %#v`,
		placeholder(name), prev, val,
	))
}

// Same as `.Add`, but returns the name under which the value is bound, which
// may differ in case from the input.
func (self *Params) bind(name string, val any) (string, error) {
	err := self.Add(name, val)
	if err != nil {
		return ``, err
	}
	return (*self)[self.index(name)].Name, nil
}

// Returns the parameters whose placeholders occur in the text, in order.
func (self Params) usedIn(text string) Params {
	if len(self) == 0 {
		return self
	}

	used := map[string]struct{}{}
	for _, match := range paramReg.FindAllStringSubmatch(text, -1) {
		used[strings.ToLower(match[1])] = struct{}{}
	}

	var out Params
	for _, val := range self {
		if _, ok := used[strings.ToLower(val.Name)]; ok {
			out = append(out, val)
		}
	}
	return out
}
