package tsqlb

import (
	r "reflect"
	"strings"

	"github.com/mitranim/refut"
)

const (
	TagNameDb     = `db`
	tagOptPk      = `pk`
	tagOptAutoInc = `autoinc`
)

/*
Optional interface for entity types. When implemented by the value type (or its
pointer), the returned name overrides the default table name, which is the
type's own name. Called on a zero value, so the result must not depend on
field values.
*/
type Tabler interface{ TableName() string }

/*
Describes one mapped member of an entity type. `.Param` is the parameter name
used when the column's value is bound by insert or update: the column name with
characters not allowed in T-SQL variable names replaced by "_", unique within
the entity regardless of case.
*/
type Col struct {
	Field   string
	Name    string
	Param   string
	Pk      bool
	AutoInc bool
	Index   []int
}

// Insertable columns exclude keys generated by the database.
func (self Col) Insertable() bool { return !(self.Pk && self.AutoInc) }

// Keys are not updatable through `Update`.
func (self Col) Settable() bool { return !self.Pk }

/*
Resolved table mapping of an entity type. Computed once per type by `Resolver`
and shared afterwards; callers must treat it as immutable.
*/
type Entity struct {
	Type  r.Type
	Table string
	Cols  []Col
}

// Finds a column by Go member name.
func (self *Entity) Col(field string) (Col, bool) {
	for _, col := range self.Cols {
		if col.Field == field {
			return col, true
		}
	}
	return Col{}, false
}

// Same as `.Col` but returns `ErrUnknownMember` for missing members.
func (self *Entity) ReqCol(while, field string) (Col, error) {
	col, ok := self.Col(field)
	if !ok {
		return col, errUnknownMember(while, self, field)
	}
	return col, nil
}

// Finds a column by its database column name.
func (self *Entity) ColByName(name string) (Col, bool) {
	for _, col := range self.Cols {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return Col{}, false
}

// Implement `fmt.Stringer` for error messages.
func (self *Entity) String() string {
	if self == nil {
		return `<nil entity>`
	}
	return typeName(self.Type)
}

// Member of an entity type, as reported by an `Introspector`.
type Member struct {
	Name  string
	Type  r.Type
	Index []int
	Tag   r.StructTag
}

// Optional per-member annotation.
type Annot struct {
	Column  string
	Pk      bool
	AutoInc bool
}

/*
Enumerates the mappable members of an entity type. Implementations must return
members in a stable order for the same type. The default is `TagIntrospector`.
*/
type Introspector interface {
	Members(r.Type) ([]Member, error)
	Annotations(Member) (Annot, bool)
	TableAnnotation(r.Type) (string, bool)
}

/*
Default `Introspector`. Walks exported struct fields in declaration order,
flattening embedded structs, and reads annotations from the struct tag named
by `.Tag` (default "db"):

	Id   int    `db:"id,pk,autoinc"`
	Name string // column "Name"
	Tmp  string `db:"-"` // skipped
*/
type TagIntrospector struct{ Tag string }

func (self TagIntrospector) tag() string {
	if self.Tag == `` {
		return TagNameDb
	}
	return self.Tag
}

// Implement `Introspector`.
func (self TagIntrospector) Members(typ r.Type) ([]Member, error) {
	typ = refut.RtypeDeref(typ)
	if typ == nil || typ.Kind() != r.Struct {
		return nil, ErrInvalidInput.
			while(`enumerating entity members`).
			because(errf(`expected struct type, got %v`, typeName(typ)))
	}

	var out []Member
	tag := self.tag()

	err := refut.TraverseStructRtype(typ, func(field r.StructField, path []int) error {
		if !isPublic(field.PkgPath) || field.Tag.Get(tag) == `-` {
			return nil
		}
		out = append(out, Member{
			Name:  field.Name,
			Type:  field.Type,
			Index: copyInts(path),
			Tag:   field.Tag,
		})
		return nil
	})
	if err != nil {
		return nil, ErrInvalidInput.while(`enumerating entity members`).because(err)
	}
	return out, nil
}

// Implement `Introspector`.
func (self TagIntrospector) Annotations(mem Member) (Annot, bool) {
	src, ok := mem.Tag.Lookup(self.tag())
	if !ok {
		return Annot{}, false
	}

	out := Annot{Column: refut.TagIdent(src)}
	_, opts, _ := strings.Cut(src, `,`)
	for _, opt := range strings.Split(opts, `,`) {
		switch strings.TrimSpace(opt) {
		case tagOptPk:
			out.Pk = true
		case tagOptAutoInc:
			out.AutoInc = true
		}
	}
	return out, true
}

// Implement `Introspector`.
func (TagIntrospector) TableAnnotation(typ r.Type) (string, bool) {
	typ = typeDeref(typ)
	if typ == nil {
		return ``, false
	}

	ptr := r.New(typ)
	impl, _ := ptr.Interface().(Tabler)
	if impl == nil {
		impl, _ = ptr.Elem().Interface().(Tabler)
	}
	if impl == nil {
		return ``, false
	}

	name := impl.TableName()
	return name, name != ``
}

type resolved struct {
	ent *Entity
	err error
}

/*
Resolves and memoizes entity descriptors. Resolution is a pure function of the
type, so each type is resolved at most once per resolver (modulo a benign race
where concurrent first callers agree on the first stored result).
*/
type Resolver struct {
	Introspector Introspector
	cache        *cache[r.Type, resolved]
}

// Makes a resolver backed by the given introspector. Nil means
// `TagIntrospector{}`.
func NewResolver(src Introspector) *Resolver {
	if src == nil {
		src = TagIntrospector{}
	}
	out := &Resolver{Introspector: src}
	out.cache = cacheOf(out.resolve)
	return out
}

// Returns the descriptor for the given entity type.
func (self *Resolver) Resolve(typ r.Type) (*Entity, error) {
	if typ == nil {
		return nil, errMissing(`resolving entity`, `entity type`)
	}
	val := self.cache.Get(typeDeref(typ))
	return val.ent, val.err
}

func (self *Resolver) resolve(typ r.Type) resolved {
	const while = `resolving entity`
	src := self.Introspector

	mems, err := src.Members(typ)
	if err != nil {
		return resolved{err: err}
	}
	if len(mems) == 0 {
		return resolved{err: ErrInvalidInput.while(while).because(
			errf(`%v has no mappable members`, typeName(typ)),
		)}
	}

	ent := &Entity{Type: typ, Table: typ.Name(), Cols: make([]Col, 0, len(mems))}
	params := make(map[string]struct{}, len(mems))
	if name, ok := src.TableAnnotation(typ); ok {
		ent.Table = name
	}

	for _, mem := range mems {
		col := Col{Field: mem.Name, Name: mem.Name, Index: mem.Index}
		annot, ok := src.Annotations(mem)
		if ok {
			if annot.Column != `` {
				col.Name = annot.Column
			}
			col.Pk = annot.Pk
			col.AutoInc = annot.AutoInc
		}
		col.Param = uniqueParamName(params, col.Name)
		ent.Cols = append(ent.Cols, col)
	}
	return resolved{ent: ent}
}

/*
Shortcut for resolving the descriptor of `A` through the given environment.
Nil env means `Default()`.
*/
func Describe[A any](env *Env) (*Entity, error) {
	return env.orDefault().meta().Resolve(typeOf[A]())
}
