package tsqlb

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type (
	B  = testing.B
	T  = testing.T
	TB = testing.TB
)

func eq(t TB, expected any, actual any) {
	t.Helper()
	require.Equal(t, expected, actual)
}

func fail(t TB, expected error, actual error) {
	t.Helper()
	require.Error(t, actual)
	require.Truef(t, errors.Is(actual, expected), "expected error matching:\n%v\nactual:\n%v", expected, actual)
}

func noerr(t TB, err error) {
	t.Helper()
	require.NoError(t, err)
}

func try1[A any](val A, err error) A {
	if err != nil {
		panic(err)
	}
	return val
}

// Isolated env with a discarding logger, so tests never share cache state.
func testEnv() *Env {
	return NewEnv(DefaultConf(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testQuery[A any](t TB, qb *Qb[A]) Query {
	t.Helper()
	out, err := qb.Query()
	noerr(t, err)
	return out
}

func intPtr(val int) *int { return &val }

type Person struct {
	Id   int `db:",pk,autoinc"`
	Name string
	Age  *int
}

type Audit struct {
	CreatedBy string `db:"created_by"`
}

type Account struct {
	Id     int64  `db:"account_id,pk"`
	Email  string `db:"email"`
	Secret string `db:"-"`
	hidden string
	Audit
}

func (Account) TableName() string { return `accounts` }

type Sequence struct {
	Id int `db:",pk,autoinc"`
}

type KeyOnly struct {
	Id int `db:",pk"`
}

type Empty struct{ hidden int }

type Filter struct {
	Name  string
	Age   *int
	Inner *Filter
	Tags  map[string]any
}

func (self Filter) Upper() string { return `UP:` + self.Name }

func (self *Filter) Twice() int {
	if self.Age == nil {
		return 0
	}
	return *self.Age * 2
}

func (Filter) Pair() (int, int) { return 1, 2 }
