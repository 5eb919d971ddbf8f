package tsqlb

import (
	"context"
	"database/sql"
	"log/slog"
	r "reflect"
)

/*
Subset of `database/sql` used to run built statements. Satisfied by `*sql.DB`,
`*sql.Tx` and `*sql.Conn`. Connection and transaction management is up to the
caller. The driver must support named parameters written as "@name".
*/
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (self Query) logger() *slog.Logger {
	if self.log == nil {
		return slog.Default()
	}
	return self.log
}

// Runs the statement, typically insert, update or delete.
func (self Query) Exec(ctx context.Context, conn ExecQuerier) (sql.Result, error) {
	if conn == nil {
		return nil, errMissing(`executing statement`, `connection`)
	}
	self.logger().Debug(`executing statement`, `text`, self.Text, `params`, len(self.Params))
	return conn.ExecContext(ctx, self.Text, self.Args()...)
}

// Runs the statement and returns the rows. The caller must close them, for
// example via `Scan`.
func (self Query) Rows(ctx context.Context, conn ExecQuerier) (*sql.Rows, error) {
	if conn == nil {
		return nil, errMissing(`querying`, `connection`)
	}
	self.logger().Debug(`querying`, `text`, self.Text, `params`, len(self.Params))
	return conn.QueryContext(ctx, self.Text, self.Args()...)
}

/*
Runs the statement and scans the first column of the only row, as produced by
`Count`. No rows is an error.
*/
func (self Query) Int64(ctx context.Context, conn ExecQuerier) (int64, error) {
	rows, err := self.Rows(ctx, conn)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		err := rows.Err()
		if err == nil {
			err = sql.ErrNoRows
		}
		return 0, err
	}

	var out int64
	err = rows.Scan(&out)
	if err != nil {
		return 0, err
	}
	return out, rows.Close()
}

/*
Decodes all rows into entities of type `A`, matching result columns to entity
columns by name, case-insensitively. A result column with no matching entity
column fails with `ErrUnknownMember`. Always closes the rows.

	query, err := Select[Person](nil, nil).Query()
	rows, err := query.Rows(ctx, db)
	people, err := Scan[Person](nil, rows)
*/
func Scan[A any](env *Env, rows *sql.Rows) ([]A, error) {
	const while = `scanning rows`

	if rows == nil {
		return nil, errMissing(while, `rows`)
	}
	defer rows.Close()

	ent, err := Describe[A](env)
	if err != nil {
		return nil, err
	}

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	cols := make([]Col, len(names))
	for ind, name := range names {
		col, ok := ent.ColByName(name)
		if !ok {
			return nil, ErrUnknownMember.while(while).because(
				errf(`%v has no column %q`, ent, name),
			)
		}
		cols[ind] = col
	}

	var out []A
	dest := make([]any, len(cols))

	for rows.Next() {
		var val A
		tar := valueAlloc(r.ValueOf(&val).Elem())

		for ind, col := range cols {
			dest[ind] = fieldAlloc(tar, col.Index).Addr().Interface()
		}

		err := rows.Scan(dest...)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return out, rows.Close()
}

// Allocates nil pointers until reaching a non-pointer value.
func valueAlloc(val r.Value) r.Value {
	for val.Kind() == r.Ptr {
		if val.IsNil() {
			val.Set(r.New(val.Type().Elem()))
		}
		val = val.Elem()
	}
	return val
}

// Like `reflect.Value.FieldByIndex` but allocates nil embedded pointers.
func fieldAlloc(val r.Value, index []int) r.Value {
	for _, ind := range index {
		val = valueAlloc(val).Field(ind)
	}
	return val
}
