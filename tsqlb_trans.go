package tsqlb

import (
	"fmt"
	"regexp"
	"strconv"
)

/*
Collects the output of translation other than text: bound parameters, the names
produced by member-access and constant nodes (subject to the null rewrite), and
the counter used for anonymous "@valN" parameters. One sink serves one
statement, so anonymous names stay unique across several where-clauses.
*/
type Sink struct {
	Params   Params
	Produced []string
	Anon     int
}

func (self *Sink) snapshot() Sink {
	return Sink{
		Params:   self.Params[:len(self.Params):len(self.Params)],
		Produced: self.Produced[:len(self.Produced):len(self.Produced)],
		Anon:     self.Anon,
	}
}

func (self *Sink) restore(prev Sink) { *self = prev }

/*
Translates a predicate tree into SQL text, binding parameters into the sink.
Column names are resolved through the entity. Does not perform the null
rewrite; see `TranslateWhere`. On error, the sink may contain partial output.
*/
func Translate(val Node, ent *Entity, sink *Sink) (string, error) {
	if ent == nil {
		return ``, errMissing(`translating expression`, `entity`)
	}
	if sink == nil {
		return ``, errMissing(`translating expression`, `parameter sink`)
	}
	return translator{ent, sink}.node(val)
}

/*
Translates a complete where-clause fragment, then rewrites equality against
null parameters to "IS NULL":

	Eq(F(`Age`), Val(nil)) -> [Age] IS NULL
	Eq(F(`Age`), Val(30))  -> [Age] = @val1

On error, the sink is restored to its prior state, so a failed translation
leaves no partial output.
*/
func TranslateWhere(val Node, ent *Entity, sink *Sink) (string, error) {
	if val == nil {
		return ``, errMissing(`translating where clause`, `predicate`)
	}
	if sink == nil {
		return ``, errMissing(`translating where clause`, `parameter sink`)
	}

	prev := sink.snapshot()
	produced := len(sink.Produced)

	text, err := Translate(val, ent, sink)
	if err != nil {
		sink.restore(prev)
		return ``, err
	}
	return rewriteNulls(text, sink.Params, sink.Produced[produced:]), nil
}

type translator struct {
	ent  *Entity
	sink *Sink
}

func (self translator) node(val Node) (string, error) {
	switch val := val.(type) {
	case Binary:
		return self.binary(val)
	case Field:
		return self.field(val)
	case Captured:
		return self.captured(val)
	case Const:
		return self.constant(val)
	case Call:
		return self.call(val)
	case nil:
		return ``, errMissing(`translating expression`, `operand`)
	default:
		return ``, errUnsupported(`translating expression`, errf(`node type %T is not supported`, val))
	}
}

func (self translator) binary(val Binary) (string, error) {
	sym := val.Op.Symbol()
	if sym == `` {
		return ``, errUnsupported(`translating binary expression`, errf(`operator %v is not supported`, val.Op))
	}

	left, err := self.operand(val.Left, val.Op)
	if err != nil {
		return ``, err
	}
	right, err := self.operand(val.Right, val.Op)
	if err != nil {
		return ``, err
	}
	return left + ` ` + sym + ` ` + right, nil
}

// Parenthesizes logical sub-expressions that bind looser than their parent,
// such as OR under AND.
func (self translator) operand(val Node, parent Op) (string, error) {
	text, err := self.node(val)
	if err != nil {
		return ``, err
	}

	child, ok := val.(Binary)
	if ok && child.Op.logical() && parent.logical() && child.Op.prec() < parent.prec() {
		return `(` + text + `)`, nil
	}
	return text, nil
}

func (self translator) field(val Field) (string, error) {
	col, err := self.fieldCol(`translating member access`, val)
	if err != nil {
		return ``, err
	}
	return ident(col.Name), nil
}

func (self translator) fieldCol(while string, val Field) (Col, error) {
	if len(val) != 1 {
		return Col{}, errUnsupported(while, errf(`member path %q must have exactly one member`, val))
	}
	return self.ent.ReqCol(while, val[0])
}

func (self translator) captured(val Captured) (string, error) {
	if len(val.Path) == 0 {
		return ``, errUnsupported(`translating captured value`, errf(`empty member path`))
	}

	out, err := evalPath(val.Root, val.Path)
	if err != nil {
		return ``, err
	}

	return self.bind(paramName(val.Path[len(val.Path)-1]), out)
}

func (self translator) constant(val Const) (string, error) {
	self.sink.Anon++
	return self.bind(anonParamStem+strconv.Itoa(self.sink.Anon), val.Val)
}

func (self translator) bind(name string, val any) (string, error) {
	name, err := self.sink.Params.bind(name, val)
	if err != nil {
		return ``, err
	}
	self.sink.Produced = append(self.sink.Produced, name)
	return placeholder(name), nil
}

func (self translator) call(val Call) (string, error) {
	const while = `translating method call`

	if val.Method != `Contains` {
		return ``, errUnsupported(while, errf(`method %q is not supported`, val.Method))
	}

	target, ok := val.Target.(Field)
	if !ok {
		return ``, errUnsupported(while, errf(`"Contains" target must be a member, got %T`, val.Target))
	}
	col, err := self.fieldCol(while, target)
	if err != nil {
		return ``, err
	}

	if len(val.Args) != 1 {
		return ``, errUnsupported(while, errf(`"Contains" expects 1 argument, got %v`, len(val.Args)))
	}
	arg, err := self.eval(val.Args[0])
	if err != nil {
		return ``, err
	}
	if arg == nil {
		return ``, errMissing(while, `"Contains" argument`)
	}

	name, err := self.sink.Params.bind(containsPrefix+col.Field, `%`+fmt.Sprint(arg)+`%`)
	if err != nil {
		return ``, err
	}
	return ident(col.Name) + ` LIKE ` + placeholder(name), nil
}

// Evaluates a value-producing node without binding it.
func (self translator) eval(val Node) (any, error) {
	switch val := val.(type) {
	case Const:
		return normNil(val.Val), nil
	case Captured:
		return evalPath(val.Root, val.Path)
	default:
		return nil, errUnsupported(`evaluating argument`, errf(`expected a constant or captured value, got %T`, val))
	}
}

var nullRegCache = cacheOf(func(name string) *regexp.Regexp {
	return regexp.MustCompile(
		`\[((?:[^\]]|\]\])+)\]\s*=\s*` + regexp.QuoteMeta(placeholder(name)) + `($|[^\p{L}\p{N}_])`,
	)
})

/*
SQL equality with null is never true, so "[Col] = @param" where the parameter is
null must become "[Col] IS NULL". Applies only to direct equality with the
column on the left.
*/
func rewriteNulls(text string, params Params, names []string) string {
	for _, name := range names {
		val, ok := params.Get(name)
		if !ok || !isNull(val) {
			continue
		}
		text = nullRegCache.Get(name).ReplaceAllString(text, `[$1] IS NULL$2`)
	}
	return text
}
