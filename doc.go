/*
T-SQL Builder: typed statement builder for Microsoft SQL Server style SQL.
Generates select, insert, update, delete and count statements for Go struct
types, with bracket-quoted identifiers and named "@param" parameters. Filters
are predicate trees translated into parameterized where-clauses.

Key Features

• Entity mapping from struct tags: `db:"column,pk,autoinc"`. Table names come
from the type name or the optional `Tabler` interface.

• Structural SQL text (projections, insert and update heads, orderings) is
cached per entity type and clause shape in a bounded LRU cache, shared
by concurrent callers.

• Predicates are plain data: `And(Gt(F("Age"), Val(18)), Contains(F("Name"),
Var("name", name)))`. Values never appear in SQL text, only as parameters.

• Equality with a null value becomes "IS NULL" automatically.

• Parameters are `sql.NamedArg`, ready for `database/sql`.

Examples

	query, err := tsqlb.Select[Person](nil, tsqlb.Proj{`Id`, `Name`}).
		Where(tsqlb.Gte(tsqlb.F(`Age`), tsqlb.Val(18))).
		OrderBy(tsqlb.F(`Name`), tsqlb.DirAsc).
		Query()

	// SELECT [Id], [Name] FROM [Person] WHERE [Age] >= @val1 ORDER BY [Name] ASC
	fmt.Println(query.Text)

	rows, err := query.Rows(ctx, db)
	people, err := tsqlb.Scan[Person](nil, rows)

Shared state such as the cache lives in `Env`. Passing a nil `*Env` uses the
process-wide `Default()`.
*/
package tsqlb
