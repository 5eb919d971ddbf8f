package tsqlb

import (
	"database/sql/driver"
	r "reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const (
	paramPrefix    = '@'
	identOpen      = '['
	identClose     = ']'
	anonParamStem  = `val`
	containsPrefix = `contains`
)

const paramNameChars = `[\p{L}\p{N}_]`

var paramReg = regexp.MustCompile(`@(` + paramNameChars + `+)`)

var nonParamReg = regexp.MustCompile(`[^\p{L}\p{N}_]`)

func cacheOf[Key comparable, Val any](fun func(Key) Val) *cache[Key, Val] {
	return &cache[Key, Val]{Func: fun}
}

/*
Unlike a plain load-then-store, racing callers converge on whichever value was
stored first, so every caller observes the same value for a given key.
*/
type cache[Key comparable, Val any] struct {
	sync.Map
	Func func(Key) Val
}

func (self *cache[Key, Val]) Get(key Key) Val {
	iface, ok := self.Load(key)
	if ok {
		return iface.(Val)
	}

	iface, _ = self.LoadOrStore(key, self.Func(key))
	return iface.(Val)
}

// Appends a bracket-quoted identifier. A closing bracket in the name is doubled.
func appendIdent(text []byte, name string) []byte {
	text = append(text, identOpen)
	for ind := 0; ind < len(name); ind++ {
		char := name[ind]
		if char == identClose {
			text = append(text, identClose)
		}
		text = append(text, char)
	}
	text = append(text, identClose)
	return text
}

func ident(name string) string { return string(appendIdent(nil, name)) }

func appendParam(text []byte, name string) []byte {
	text = append(text, paramPrefix)
	text = append(text, name...)
	return text
}

func placeholder(name string) string { return string(appendParam(nil, name)) }

// Replaces characters not allowed in a parameter name.
func paramName(name string) string {
	if name == `` {
		return `_`
	}
	return nonParamReg.ReplaceAllLiteralString(name, `_`)
}

/*
Derives a parameter name not yet in `taken`, which holds lowercased names, and
adds it there. Collisions get a numeric suffix: "a_b", "a_b_2".
*/
func uniqueParamName(taken map[string]struct{}, name string) string {
	base := paramName(name)
	out := base
	for ind := 2; ; ind++ {
		key := strings.ToLower(out)
		if _, ok := taken[key]; !ok {
			taken[key] = struct{}{}
			return out
		}
		out = base + `_` + strconv.Itoa(ind)
	}
}

func counter(val int) []struct{} { return make([]struct{}, val) }

func copyInts(src []int) []int {
	if src == nil {
		return nil
	}
	out := make([]int, len(src))
	copy(out, src)
	return out
}

func isPublic(pkgPath string) bool { return pkgPath == `` }

func typeDeref(typ r.Type) r.Type {
	for typ != nil && typ.Kind() == r.Ptr {
		typ = typ.Elem()
	}
	return typ
}

func typeElem(typ r.Type) r.Type {
	for typ != nil && (typ.Kind() == r.Ptr || typ.Kind() == r.Slice) {
		typ = typ.Elem()
	}
	return typ
}

func typeName(typ r.Type) string {
	typ = typeDeref(typ)
	if typ == nil {
		return `nil`
	}
	if typ.PkgPath() == `` {
		return typ.String()
	}
	return typ.PkgPath() + `.` + typ.Name()
}

// Address of a pointer-shaped value, or 0.
func pointerOf(val any) uintptr {
	src := r.ValueOf(val)
	if src.Kind() == r.Ptr {
		return src.Pointer()
	}
	return 0
}

func typeOf[A any]() r.Type { return r.TypeOf((*A)(nil)).Elem() }

func valueDeref(val r.Value) r.Value {
	for val.Kind() == r.Ptr || val.Kind() == r.Interface {
		if val.IsNil() {
			return r.Value{}
		}
		val = val.Elem()
	}
	return val
}

func isNil(val any) bool {
	return val == nil || isValueNil(r.ValueOf(val))
}

func isValueNil(val r.Value) bool {
	return !val.IsValid() || isNilable(val.Kind()) && val.IsNil()
}

func isNilable(kind r.Kind) bool {
	switch kind {
	case r.Chan, r.Func, r.Interface, r.Map, r.Ptr, r.Slice:
		return true
	default:
		return false
	}
}

/*
Reports whether the value is the SQL null sentinel. Besides Go nils, this
includes `driver.Valuer` implementations such as `sql.NullString{}` that encode
to nil.
*/
func isNull(val any) bool {
	if isNil(val) {
		return true
	}
	valuer, _ := val.(driver.Valuer)
	if valuer == nil {
		return false
	}
	out, err := valuer.Value()
	return err == nil && out == nil
}

// Converts nil pointers and similar typed nils to an untyped nil.
func normNil(val any) any {
	if isNil(val) {
		return nil
	}
	return val
}
