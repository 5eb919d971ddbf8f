package tsqlb

import (
	"log/slog"
	r "reflect"
	"strings"
)

/*
Built statement: SQL text plus named parameters, ready for an executor. See
`(Query).Exec` and friends for running it through `database/sql`.
*/
type Query struct {
	Text   string
	Params Params
	log    *slog.Logger
}

// Implement `fmt.Stringer`.
func (self Query) String() string { return self.Text }

// Shortcut for `self.Params.Args()`.
func (self Query) Args() []any { return self.Params.Args() }

/*
Short for "projection". Names of entity members to select or update, standing
in for an anonymous projection object such as `x => new { x.Id, x.Name }`. Nil
means "no projection"; non-nil and empty is an error.
*/
type Proj []string

/*
Lists the exported field names of a struct value, in declaration order. Lets a
"view" struct serve as a projection:

	type PersonName struct{ Id int; Name string }
	Select[Person](nil, ProjOf(PersonName{}))
*/
func ProjOf(val any) Proj {
	typ := typeElem(r.TypeOf(val))
	if typ == nil || typ.Kind() != r.Struct {
		return Proj{}
	}

	out := make(Proj, 0, typ.NumField())
	for ind := range counter(typ.NumField()) {
		field := typ.Field(ind)
		if isPublic(field.PkgPath) {
			out = append(out, field.Name)
		}
	}
	return out
}

// Canonical shape used for cache keys. Member order is significant because it
// determines column order.
func (self Proj) Shape() string {
	if self == nil {
		return ``
	}
	return `(` + strings.Join(self, `, `) + `)`
}

/*
Resolves members to columns in projection order, skipping duplicates. Fails
with `ErrEmptyProjection` when nothing resolves, and with `ErrUnknownMember`
when some members resolve and others don't.
*/
func (self Proj) cols(while string, ent *Entity) ([]Col, error) {
	if len(self) == 0 {
		return nil, ErrEmptyProjection.while(while).because(errf(`no members selected`))
	}

	var out []Col
	var unknown []string
	seen := make(map[string]struct{}, len(self))

	for _, name := range self {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		col, ok := ent.Col(name)
		if ok {
			out = append(out, col)
		} else {
			unknown = append(unknown, name)
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyProjection.while(while).because(
			errf(`none of the members %q belong to %v`, unknown, ent),
		)
	}
	if len(unknown) > 0 {
		return nil, errUnknownMember(while, ent, unknown[0])
	}
	return out, nil
}

type whereFrag struct {
	text string
	or   bool
}

/*
Short for "query builder". Accumulates one statement for the entity type `A`.
Create with `Select`, `Insert`, `Update`, `Delete` or `Count`, refine with
`Where` and `OrderBy`, then call `Query`. Not safe for concurrent use; the
shared state lives in `Env`.

Errors are sticky: the first failure is recorded, later calls are nops, and
`Query` returns the error without a partial statement.
*/
type Qb[A any] struct {
	env    *Env
	ent    *Entity
	kind   ClauseKind
	head   string
	sink   Sink
	wheres []whereFrag
	ords   []string
	err    error
}

func newQb[A any](env *Env, kind ClauseKind) *Qb[A] {
	env = env.orDefault()
	ent, err := env.meta().Resolve(typeOf[A]())
	return &Qb[A]{env: env, ent: ent, kind: kind, err: err}
}

func (self *Qb[A]) key(kind ClauseKind, shape string) CacheKey {
	return CacheKey{Type: self.ent.Type, Kind: kind, Shape: shape, Meta: self.env.meta()}
}

func (self *Qb[A]) cached(key CacheKey, fun func() (string, error)) (string, error) {
	return self.env.Cache.GetOrCompute(key, fun)
}

func (self *Qb[A]) fail(err error) *Qb[A] {
	if self.err == nil {
		self.err = err
	}
	return self
}

/*
Starts a select statement. Nil projection selects all columns:

	Select[Person](nil, nil)                 // SELECT * FROM [Person]
	Select[Person](nil, Proj{`Id`, `Name`})  // SELECT [Id], [Name] FROM [Person]
*/
func Select[A any](env *Env, proj Proj) *Qb[A] {
	self := newQb[A](env, ClauseSelect)
	if self.err != nil {
		return self
	}
	if proj != nil && len(proj) == 0 {
		return self.fail(ErrEmptyProjection.while(`building select`).because(errf(`no members selected`)))
	}

	self.head, self.err = self.cached(self.key(ClauseSelect, proj.Shape()), func() (string, error) {
		return selectHead(self.ent, proj)
	})
	return self
}

func selectHead(ent *Entity, proj Proj) (string, error) {
	if proj == nil {
		return `SELECT * FROM ` + ident(ent.Table), nil
	}

	cols, err := proj.cols(`building select`, ent)
	if err != nil {
		return ``, err
	}

	var buf []byte
	buf = append(buf, `SELECT `...)
	for ind, col := range cols {
		if ind > 0 {
			buf = append(buf, `, `...)
		}
		buf = appendIdent(buf, col.Name)
	}
	buf = append(buf, ` FROM `...)
	buf = appendIdent(buf, ent.Table)
	return string(buf), nil
}

/*
Starts an insert statement for the record. Columns that are both primary key and
auto-increment are excluded. Parameters are named after columns, see `Col.Param`:

	INSERT INTO [Person] ([Name], [Age]) VALUES (@Name, @Age)
*/
func Insert[A any](env *Env, rec A) *Qb[A] {
	self := newQb[A](env, ClauseInsert)
	if self.err != nil {
		return self
	}

	src, err := self.record(`building insert`, rec)
	if err != nil {
		return self.fail(err)
	}

	self.head, self.err = self.cached(self.key(ClauseInsert, ``), func() (string, error) {
		return insertHead(self.ent), nil
	})
	if self.err != nil {
		return self
	}

	for _, col := range self.ent.Cols {
		if col.Insertable() {
			err := self.bindCol(src, col)
			if err != nil {
				return self.fail(err)
			}
		}
	}
	return self
}

func insertHead(ent *Entity) string {
	var names, vals []byte
	for _, col := range ent.Cols {
		if !col.Insertable() {
			continue
		}
		names = appendIdent(names, col.Name)
		names = append(names, `, `...)
		vals = appendParam(vals, col.Param)
		vals = append(vals, `, `...)
	}

	if len(names) == 0 {
		return `INSERT INTO ` + ident(ent.Table) + ` DEFAULT VALUES`
	}

	names = names[:len(names)-len(`, `)]
	vals = vals[:len(vals)-len(`, `)]
	return `INSERT INTO ` + ident(ent.Table) + ` (` + string(names) + `) VALUES (` + string(vals) + `)`
}

/*
Starts an update statement for the record. Primary key columns are never set.
Nil projection sets every other column; otherwise only the projected members:

	UPDATE [Person] SET [Name] = @Name, [Age] = @Age

Usually followed by `Where`, typically on the key.
*/
func Update[A any](env *Env, rec A, proj Proj) *Qb[A] {
	const while = `building update`

	self := newQb[A](env, ClauseUpdate)
	if self.err != nil {
		return self
	}

	src, err := self.record(while, rec)
	if err != nil {
		return self.fail(err)
	}

	cols, err := updateCols(while, self.ent, proj)
	if err != nil {
		return self.fail(err)
	}

	self.head, self.err = self.cached(self.key(ClauseUpdate, proj.Shape()), func() (string, error) {
		return updateHead(self.ent, cols), nil
	})
	if self.err != nil {
		return self
	}

	for _, col := range cols {
		err := self.bindCol(src, col)
		if err != nil {
			return self.fail(err)
		}
	}
	return self
}

// Settable columns in entity order, optionally narrowed by the projection.
func updateCols(while string, ent *Entity, proj Proj) ([]Col, error) {
	var allowed map[string]struct{}
	if proj != nil {
		cols, err := proj.cols(while, ent)
		if err != nil {
			return nil, err
		}
		allowed = make(map[string]struct{}, len(cols))
		for _, col := range cols {
			allowed[col.Field] = struct{}{}
		}
	}

	var out []Col
	for _, col := range ent.Cols {
		if !col.Settable() {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[col.Field]; !ok {
				continue
			}
		}
		out = append(out, col)
	}

	if len(out) == 0 {
		return nil, ErrEmptyProjection.while(while).because(errf(`no updatable columns in %v`, ent))
	}
	return out, nil
}

func updateHead(ent *Entity, cols []Col) string {
	var buf []byte
	buf = append(buf, `UPDATE `...)
	buf = appendIdent(buf, ent.Table)
	buf = append(buf, ` SET `...)
	for _, col := range cols {
		buf = appendIdent(buf, col.Name)
		buf = append(buf, ` = `...)
		buf = appendParam(buf, col.Param)
		buf = append(buf, `, `...)
	}
	return string(buf[:len(buf)-len(`, `)])
}

// Starts a delete statement: `DELETE FROM [Person]`.
func Delete[A any](env *Env) *Qb[A] {
	self := newQb[A](env, ClauseDelete)
	if self.err != nil {
		return self
	}
	self.head, self.err = self.cached(self.key(ClauseDelete, ``), func() (string, error) {
		return `DELETE FROM ` + ident(self.ent.Table), nil
	})
	return self
}

// Starts a count statement: `SELECT CAST(COUNT(*) AS BIGINT) FROM [Person]`.
func Count[A any](env *Env) *Qb[A] {
	self := newQb[A](env, ClauseSelectCount)
	if self.err != nil {
		return self
	}
	self.head, self.err = self.cached(self.key(ClauseSelectCount, ``), func() (string, error) {
		return `SELECT CAST(COUNT(*) AS BIGINT) FROM ` + ident(self.ent.Table), nil
	})
	return self
}

/*
Adds a where-clause fragment. Multiple calls are joined with AND, in call order.
Where-clauses are never cached: their text depends on parameter values through
the null rewrite. Not allowed on insert statements.
*/
func (self *Qb[A]) Where(val Node) *Qb[A] {
	const while = `building where clause`

	if self.err != nil {
		return self
	}
	if self.kind == ClauseInsert {
		return self.fail(ErrInvalidInput.while(while).because(errf(`insert statements can't have a where clause`)))
	}

	text, err := TranslateWhere(val, self.ent, &self.sink)
	if err != nil {
		return self.fail(err)
	}

	root, _ := val.(Binary)
	self.wheres = append(self.wheres, whereFrag{text, root.Op == OpOr})
	return self
}

/*
Adds an ordering by a member of the entity. Multiple calls are comma-joined in
call order. Only allowed on select statements.

	Select[Person](nil, nil).OrderBy(F(`Age`), DirDesc).OrderBy(F(`Name`), DirAsc)
	// SELECT * FROM [Person] ORDER BY [Age] DESC, [Name] ASC
*/
func (self *Qb[A]) OrderBy(key Node, dir Dir) *Qb[A] {
	const while = `building order by`

	if self.err != nil {
		return self
	}
	if self.kind != ClauseSelect {
		return self.fail(ErrInvalidInput.while(while).because(errf(`only select statements can be ordered`)))
	}
	if key == nil {
		return self.fail(errMissing(while, `key selector`))
	}

	field, ok := key.(Field)
	if !ok {
		return self.fail(errUnsupported(while, errf(`key selector must be a member, got %T`, key)))
	}

	text, err := self.cached(self.key(ClauseOrderBy, Shape(field)+` `+dir.Keyword()), func() (string, error) {
		col, err := translator{self.ent, nil}.fieldCol(while, field)
		if err != nil {
			return ``, err
		}
		return ident(col.Name) + ` ` + dir.Keyword(), nil
	})
	if err != nil {
		return self.fail(err)
	}

	self.ords = append(self.ords, text)
	return self
}

// Shortcut for calling `OrderBy` for each ordering, typically parsed from
// client input.
func (self *Qb[A]) OrderByOrds(ords Ords) *Qb[A] {
	for _, ord := range ords {
		self.OrderBy(F(ord.Field), ord.Dir)
	}
	return self
}

// Returns the first error, if any.
func (self *Qb[A]) Err() error { return self.err }

// Returns the entity descriptor, or nil if resolution failed.
func (self *Qb[A]) Entity() *Entity { return self.ent }

/*
Assembles the final statement. Parameters not referenced by the text, such as
those eliminated by the null rewrite, are dropped.
*/
func (self *Qb[A]) Query() (Query, error) {
	if self.err != nil {
		return Query{}, self.err
	}

	var buf strings.Builder
	buf.WriteString(self.head)

	if len(self.wheres) > 0 {
		buf.WriteString(` WHERE `)
		multi := len(self.wheres) > 1
		for ind, val := range self.wheres {
			if ind > 0 {
				buf.WriteString(` AND `)
			}
			if multi && val.or {
				buf.WriteString(`(` + val.text + `)`)
			} else {
				buf.WriteString(val.text)
			}
		}
	}

	if len(self.ords) > 0 {
		buf.WriteString(` ORDER BY `)
		buf.WriteString(strings.Join(self.ords, `, `))
	}

	out := Query{Text: buf.String(), log: self.env.log()}
	out.Params = self.sink.Params.usedIn(out.Text)

	out.log.Debug(`built statement`,
		`kind`, self.kind.String(),
		`entity`, self.ent.String(),
		`text`, out.Text,
		`params`, len(out.Params),
	)
	return out, nil
}

func (self *Qb[A]) record(while string, rec A) (r.Value, error) {
	val := valueDeref(r.ValueOf(&rec).Elem())
	if !val.IsValid() {
		return val, errMissing(while, `record`)
	}
	return val, nil
}

func (self *Qb[A]) bindCol(src r.Value, col Col) error {
	var val any
	field, err := src.FieldByIndexErr(col.Index)
	if err == nil {
		val = field.Interface()
	}
	return self.sink.Params.Add(col.Param, val)
}
