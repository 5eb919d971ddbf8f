package tsqlb

import (
	"strconv"
	"strings"
)

/*
Node of a predicate tree. The set of node types is closed: `Binary`, `Field`,
`Captured`, `Const` and `Call`. Trees are inspected and translated, never
executed.

	// x => x.Age > 18 && x.Name.Contains(name)
	And(Gt(F(`Age`), Val(18)), Contains(F(`Name`), Var(`name`, name)))
*/
type Node interface{ node() }

func (Binary) node()   {}
func (Field) node()    {}
func (Captured) node() {}
func (Const) node()    {}
func (Call) node()     {}

// Binary operator.
type Op byte

const (
	OpNone Op = iota
	OpEq
	OpNeq
	OpGt
	OpLt
	OpGte
	OpLte
	OpAnd
	OpOr

	// Representable but never translatable.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

// Returns the SQL symbol, or "" for operators without one.
func (self Op) Symbol() string {
	switch self {
	case OpEq:
		return `=`
	case OpNeq:
		return `!=`
	case OpGt:
		return `>`
	case OpLt:
		return `<`
	case OpGte:
		return `>=`
	case OpLte:
		return `<=`
	case OpAnd:
		return `AND`
	case OpOr:
		return `OR`
	default:
		return ``
	}
}

// Implement `fmt.Stringer`. Unlike `.Symbol`, this is total.
func (self Op) String() string {
	switch self {
	case OpAdd:
		return `+`
	case OpSub:
		return `-`
	case OpMul:
		return `*`
	case OpDiv:
		return `/`
	case OpMod:
		return `%`
	}
	if sym := self.Symbol(); sym != `` {
		return sym
	}
	return `op(` + strconv.Itoa(int(self)) + `)`
}

func (self Op) logical() bool { return self == OpAnd || self == OpOr }

// Binding strength of logical operators; higher binds tighter.
func (self Op) prec() int {
	switch self {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	default:
		return 3
	}
}

// Binary node such as `x.Age >= 18` or `a && b`.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

/*
Member of the predicate's own parameter: `F("Age")` stands for `x.Age`. Only
single-member paths map to columns.
*/
type Field []string

/*
Member access on a value captured from outside the predicate, such as a field of
a closed-over record: `Cap(filter, "Age")` stands for `filter.Age`. The path is
evaluated when the predicate is translated. The bound parameter is named after
the last member.
*/
type Captured struct {
	Root any
	Path []string
}

// Literal value, bound as an anonymous parameter.
type Const struct{ Val any }

/*
Method call on a member. Only "Contains" is supported, which translates to
`LIKE '%...%'`.
*/
type Call struct {
	Method string
	Target Node
	Args   []Node
}

// Shortcut for `Field(path)`.
func F(path ...string) Field { return Field(path) }

// Shortcut for `Captured{root, path}`.
func Cap(root any, path ...string) Captured { return Captured{root, path} }

/*
Captured local variable. The parameter is named after the variable, matching
how closures capture locals:

	Eq(F(`Age`), Var(`age`, age)) // [Age] = @age
*/
func Var(name string, val any) Captured {
	return Captured{map[string]any{name: val}, []string{name}}
}

// Shortcut for `Const{val}`.
func Val(val any) Const { return Const{val} }

func Eq(left, right Node) Binary  { return Binary{OpEq, left, right} }
func Neq(left, right Node) Binary { return Binary{OpNeq, left, right} }
func Gt(left, right Node) Binary  { return Binary{OpGt, left, right} }
func Lt(left, right Node) Binary  { return Binary{OpLt, left, right} }
func Gte(left, right Node) Binary { return Binary{OpGte, left, right} }
func Lte(left, right Node) Binary { return Binary{OpLte, left, right} }

// Arbitrary binary node, mostly for arithmetic which is representable but not
// translatable.
func Arith(op Op, left, right Node) Binary { return Binary{op, left, right} }

// Left-folds the nodes with `AND`. Nil nodes are skipped.
func And(vals ...Node) Node { return fold(OpAnd, vals) }

// Left-folds the nodes with `OR`. Nil nodes are skipped.
func Or(vals ...Node) Node { return fold(OpOr, vals) }

func fold(op Op, vals []Node) (out Node) {
	for _, val := range vals {
		if val == nil {
			continue
		}
		if out == nil {
			out = val
		} else {
			out = Binary{op, out, val}
		}
	}
	return
}

// Shortcut for `x.Member.Contains(arg)`.
func Contains(target Node, arg Node) Call {
	return Call{Method: `Contains`, Target: target, Args: []Node{arg}}
}

/*
Canonical rendering of a tree's structure. Operators, member paths and method
names are preserved. Literals render as "?" and captured values render only as
their access path. Two trees that differ only in values have the same shape:

	Shape(Eq(F(`Age`), Val(30)))   // (x.Age = ?)
	Shape(Eq(F(`Age`), Val(nil)))  // (x.Age = ?)
*/
func Shape(val Node) string {
	var buf strings.Builder
	appendShape(&buf, val)
	return buf.String()
}

func appendShape(buf *strings.Builder, val Node) {
	switch val := val.(type) {
	case nil:
		buf.WriteString(`nil`)

	case Binary:
		buf.WriteString(`(`)
		appendShape(buf, val.Left)
		buf.WriteString(` `)
		buf.WriteString(val.Op.String())
		buf.WriteString(` `)
		appendShape(buf, val.Right)
		buf.WriteString(`)`)

	case Field:
		appendShapePath(buf, `x`, val)

	case Captured:
		appendShapePath(buf, `$`, val.Path)

	case Const:
		buf.WriteString(`?`)

	case Call:
		appendShape(buf, val.Target)
		buf.WriteString(`.`)
		buf.WriteString(val.Method)
		buf.WriteString(`(`)
		for ind, arg := range val.Args {
			if ind > 0 {
				buf.WriteString(`, `)
			}
			appendShape(buf, arg)
		}
		buf.WriteString(`)`)

	default:
		buf.WriteString(`<unknown>`)
	}
}

func appendShapePath(buf *strings.Builder, root string, path []string) {
	buf.WriteString(root)
	for _, name := range path {
		buf.WriteString(`.`)
		buf.WriteString(name)
	}
}
