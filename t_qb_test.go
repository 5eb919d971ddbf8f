package tsqlb

import (
	"sync"
	"testing"
)

func testQb[A any](t TB, expText string, expParams Params, qb *Qb[A]) {
	t.Helper()
	out := testQuery(t, qb)
	eq(t, expText, out.Text)
	eq(t, expParams, out.Params)
}

func testQbErr[A any](t TB, exp error, qb *Qb[A]) {
	t.Helper()
	out, err := qb.Query()
	fail(t, exp, err)
	eq(t, Query{}, out)
	fail(t, exp, qb.Err())
}

func Test_Select(t *testing.T) {
	env := testEnv()

	testQb(t, `SELECT * FROM [Person]`, nil, Select[Person](env, nil))
	testQb(t, `SELECT [Id], [Name] FROM [Person]`, nil, Select[Person](env, Proj{`Id`, `Name`}))
	testQb(t, `SELECT [Name], [Id] FROM [Person]`, nil, Select[Person](env, Proj{`Name`, `Id`}))
	testQb(t, `SELECT [Name] FROM [Person]`, nil, Select[Person](env, Proj{`Name`, `Name`}))
	testQb(t, `SELECT * FROM [accounts]`, nil, Select[Account](env, nil))
	testQb(t, `SELECT [account_id], [created_by] FROM [accounts]`, nil, Select[Account](env, Proj{`Id`, `CreatedBy`}))

	t.Run(`projection from struct`, func(t *testing.T) {
		type PersonName struct {
			Name string
			Id   int
			skip bool
		}
		eq(t, Proj{`Name`, `Id`}, ProjOf(PersonName{}))
		eq(t, Proj{`Name`, `Id`}, ProjOf(&PersonName{}))
		eq(t, Proj{}, ProjOf(10))
		testQb(t, `SELECT [Name], [Id] FROM [Person]`, nil, Select[Person](env, ProjOf(PersonName{})))
	})

	t.Run(`pointer entity type`, func(t *testing.T) {
		testQb(t, `SELECT * FROM [Person]`, nil, Select[*Person](env, nil))
	})

	t.Run(`invalid projections`, func(t *testing.T) {
		testQbErr(t, ErrEmptyProjection, Select[Person](env, Proj{}))
		testQbErr(t, ErrEmptyProjection, Select[Person](env, Proj{`Missing`}))
		testQbErr(t, ErrEmptyProjection, Select[Person](env, ProjOf(10)))
		testQbErr(t, ErrUnknownMember, Select[Person](env, Proj{`Name`, `Missing`}))
		testQbErr(t, ErrUnknownMember, Select[Account](env, Proj{`Secret`, `Email`}))
	})

	t.Run(`invalid entity`, func(t *testing.T) {
		testQbErr(t, ErrInvalidInput, Select[Empty](env, nil))
		testQbErr(t, ErrInvalidInput, Select[string](env, nil))
	})
}

func Test_Select_Where(t *testing.T) {
	env := testEnv()

	testQb(t,
		`SELECT * FROM [Person] WHERE [Age] >= @val1`,
		Params{{`val1`, 18}},
		Select[Person](env, nil).Where(Gte(F(`Age`), Val(18))),
	)

	t.Run(`multiple where calls are joined with AND`, func(t *testing.T) {
		testQb(t,
			`SELECT [Id] FROM [Person] WHERE [Age] >= @val1 AND [Name] = @val2`,
			Params{{`val1`, 18}, {`val2`, `bob`}},
			Select[Person](env, Proj{`Id`}).
				Where(Gte(F(`Age`), Val(18))).
				Where(Eq(F(`Name`), Val(`bob`))),
		)
	})

	t.Run(`or fragments are parenthesized among several`, func(t *testing.T) {
		testQb(t,
			`SELECT * FROM [Person] WHERE ([Age] = @val1 OR [Age] = @val2) AND [Name] = @val3`,
			Params{{`val1`, 1}, {`val2`, 2}, {`val3`, `bob`}},
			Select[Person](env, nil).
				Where(Or(Eq(F(`Age`), Val(1)), Eq(F(`Age`), Val(2)))).
				Where(Eq(F(`Name`), Val(`bob`))),
		)

		testQb(t,
			`SELECT * FROM [Person] WHERE [Age] = @val1 OR [Age] = @val2`,
			Params{{`val1`, 1}, {`val2`, 2}},
			Select[Person](env, nil).Where(Or(Eq(F(`Age`), Val(1)), Eq(F(`Age`), Val(2)))),
		)
	})

	t.Run(`null rewrite prunes the unused parameter`, func(t *testing.T) {
		testQb(t,
			`SELECT * FROM [Person] WHERE [Age] IS NULL`,
			nil,
			Select[Person](env, nil).Where(Eq(F(`Age`), Var(`Age`, nil))),
		)

		testQb(t,
			`SELECT * FROM [Person] WHERE [Age] = @Age`,
			Params{{`Age`, 30}},
			Select[Person](env, nil).Where(Eq(F(`Age`), Var(`Age`, 30))),
		)
	})

	t.Run(`contains`, func(t *testing.T) {
		testQb(t,
			`SELECT * FROM [Person] WHERE [Name] LIKE @containsName`,
			Params{{`containsName`, `%ab%`}},
			Select[Person](env, nil).Where(Contains(F(`Name`), Val(`ab`))),
		)
	})
}

func Test_Select_OrderBy(t *testing.T) {
	env := testEnv()

	testQb(t,
		`SELECT * FROM [Person] ORDER BY [Name] ASC, [Age] DESC`,
		nil,
		Select[Person](env, nil).OrderBy(F(`Name`), DirNone).OrderBy(F(`Age`), DirDesc),
	)

	testQb(t,
		`SELECT [Email] FROM [accounts] WHERE [account_id] > @val1 ORDER BY [created_by] ASC`,
		Params{{`val1`, 10}},
		Select[Account](env, Proj{`Email`}).
			OrderBy(F(`CreatedBy`), DirAsc).
			Where(Gt(F(`Id`), Val(10))),
	)

	t.Run(`direction is part of the cached shape`, func(t *testing.T) {
		testQb(t, `SELECT * FROM [Person] ORDER BY [Age] ASC`, nil,
			Select[Person](env, nil).OrderBy(F(`Age`), DirAsc))
		testQb(t, `SELECT * FROM [Person] ORDER BY [Age] DESC`, nil,
			Select[Person](env, nil).OrderBy(F(`Age`), DirDesc))
	})

	t.Run(`from parsed orderings`, func(t *testing.T) {
		var ords Ords
		noerr(t, ords.ParseSlice([]string{`Name desc`, ``, `Id`}))

		testQb(t, `SELECT * FROM [Person] ORDER BY [Name] DESC, [Id] ASC`, nil,
			Select[Person](env, nil).OrderByOrds(ords))

		testQbErr(t, ErrUnknownMember, Select[Person](env, nil).OrderByOrds(Ords{OrdAsc(`Missing`)}))
	})

	t.Run(`invalid`, func(t *testing.T) {
		testQbErr(t, ErrMissingArgument, Select[Person](env, nil).OrderBy(nil, DirAsc))
		testQbErr(t, ErrUnsupportedExpression, Select[Person](env, nil).OrderBy(Val(1), DirAsc))
		testQbErr(t, ErrUnsupportedExpression, Select[Person](env, nil).OrderBy(F(`Inner`, `Age`), DirAsc))
		testQbErr(t, ErrUnknownMember, Select[Person](env, nil).OrderBy(F(`Missing`), DirAsc))
		testQbErr(t, ErrInvalidInput, Count[Person](env).OrderBy(F(`Age`), DirAsc))
		testQbErr(t, ErrInvalidInput, Delete[Person](env).OrderBy(F(`Age`), DirAsc))
	})
}

func Test_Insert(t *testing.T) {
	env := testEnv()

	testQb(t,
		`INSERT INTO [Person] ([Name], [Age]) VALUES (@Name, @Age)`,
		Params{{`Name`, `bob`}, {`Age`, intPtr(30)}},
		Insert(env, Person{Id: 10, Name: `bob`, Age: intPtr(30)}),
	)

	t.Run(`null values`, func(t *testing.T) {
		testQb(t,
			`INSERT INTO [Person] ([Name], [Age]) VALUES (@Name, @Age)`,
			Params{{`Name`, ``}, {`Age`, nil}},
			Insert(env, Person{}),
		)
	})

	t.Run(`pk without autoinc is inserted`, func(t *testing.T) {
		testQb(t,
			`INSERT INTO [accounts] ([account_id], [email], [created_by]) VALUES (@account_id, @email, @created_by)`,
			Params{{`account_id`, int64(7)}, {`email`, `a@b.c`}, {`created_by`, `admin`}},
			Insert(env, Account{Id: 7, Email: `a@b.c`, Secret: `hidden`, Audit: Audit{`admin`}}),
		)
	})

	t.Run(`only generated columns`, func(t *testing.T) {
		testQb(t, `INSERT INTO [Sequence] DEFAULT VALUES`, nil, Insert(env, Sequence{Id: 3}))
	})

	t.Run(`pointer records`, func(t *testing.T) {
		testQb(t,
			`INSERT INTO [Person] ([Name], [Age]) VALUES (@Name, @Age)`,
			Params{{`Name`, `bob`}, {`Age`, nil}},
			Insert(env, &Person{Name: `bob`}),
		)
		testQbErr(t, ErrMissingArgument, Insert(env, (*Person)(nil)))
	})

	t.Run(`where is rejected`, func(t *testing.T) {
		testQbErr(t, ErrInvalidInput, Insert(env, Person{}).Where(Eq(F(`Id`), Val(1))))
	})
}

func Test_Update(t *testing.T) {
	env := testEnv()
	rec := Person{Id: 10, Name: `bob`, Age: intPtr(30)}

	testQb(t,
		`UPDATE [Person] SET [Name] = @Name, [Age] = @Age WHERE [Id] = @Id`,
		Params{{`Name`, `bob`}, {`Age`, intPtr(30)}, {`Id`, 10}},
		Update(env, rec, nil).Where(Eq(F(`Id`), Cap(rec, `Id`))),
	)

	t.Run(`projection narrows columns in entity order`, func(t *testing.T) {
		testQb(t,
			`UPDATE [Person] SET [Name] = @Name, [Age] = @Age`,
			Params{{`Name`, `bob`}, {`Age`, intPtr(30)}},
			Update(env, rec, Proj{`Age`, `Name`}),
		)
		testQb(t,
			`UPDATE [Person] SET [Name] = @Name`,
			Params{{`Name`, `bob`}},
			Update(env, rec, Proj{`Id`, `Name`}),
		)
	})

	t.Run(`key is never set`, func(t *testing.T) {
		testQbErr(t, ErrEmptyProjection, Update(env, rec, Proj{`Id`}))
		testQbErr(t, ErrEmptyProjection, Update(env, KeyOnly{1}, nil))
	})

	t.Run(`parameter values are never cached`, func(t *testing.T) {
		testQb(t, `UPDATE [Person] SET [Name] = @Name`, Params{{`Name`, `one`}},
			Update(env, Person{Name: `one`}, Proj{`Name`}))
		testQb(t, `UPDATE [Person] SET [Name] = @Name`, Params{{`Name`, `two`}},
			Update(env, Person{Name: `two`}, Proj{`Name`}))
	})

	t.Run(`conflicting where parameter`, func(t *testing.T) {
		testQbErr(t, ErrParamConflict,
			Update(env, rec, Proj{`Name`}).Where(Eq(F(`Name`), Var(`Name`, `eve`))))
	})

	t.Run(`parameter names are case-insensitive`, func(t *testing.T) {
		testQbErr(t, ErrParamConflict,
			Update(env, rec, Proj{`Name`}).Where(Eq(F(`Name`), Var(`name`, `eve`))))

		testQb(t,
			`UPDATE [Person] SET [Name] = @Name WHERE [Name] = @Name`,
			Params{{`Name`, `bob`}},
			Update(env, rec, Proj{`Name`}).Where(Eq(F(`Name`), Var(`name`, `bob`))),
		)
	})
}

type Spaced struct {
	Id    int    `db:"id,pk,autoinc"`
	First string `db:"first name"`
	Last  string `db:"first_name"`
	Odd   *int   `db:"a]b"`
}

func (Spaced) TableName() string { return `odd]table` }

func Test_Qb_unusual_column_names(t *testing.T) {
	env := testEnv()
	rec := Spaced{Id: 1, First: `bob`, Last: `doe`}

	t.Run(`insert binds every column`, func(t *testing.T) {
		testQb(t,
			`INSERT INTO [odd]]table] ([first name], [first_name], [a]]b]) VALUES (@first_name, @first_name_2, @a_b)`,
			Params{{`first_name`, `bob`}, {`first_name_2`, `doe`}, {`a_b`, nil}},
			Insert(env, rec),
		)
	})

	t.Run(`update binds every column`, func(t *testing.T) {
		testQb(t,
			`UPDATE [odd]]table] SET [first name] = @first_name WHERE [id] = @Id`,
			Params{{`first_name`, `bob`}, {`Id`, 1}},
			Update(env, rec, Proj{`First`}).Where(Eq(F(`Id`), Cap(rec, `Id`))),
		)
	})

	t.Run(`brackets are escaped and null rewrite still applies`, func(t *testing.T) {
		testQb(t,
			`SELECT [a]]b] FROM [odd]]table] WHERE [a]]b] IS NULL AND [first name] = @val2`,
			Params{{`val2`, `bob`}},
			Select[Spaced](env, Proj{`Odd`}).
				Where(Eq(F(`Odd`), Val(nil))).
				Where(Eq(F(`First`), Val(`bob`))),
		)
	})

	t.Run(`order by escapes brackets`, func(t *testing.T) {
		testQb(t, `SELECT * FROM [odd]]table] ORDER BY [a]]b] DESC`, nil,
			Select[Spaced](env, nil).OrderBy(F(`Odd`), DirDesc))
	})
}

func Test_Delete(t *testing.T) {
	env := testEnv()

	testQb(t, `DELETE FROM [Person]`, nil, Delete[Person](env))
	testQb(t,
		`DELETE FROM [accounts] WHERE [email] LIKE @containsEmail`,
		Params{{`containsEmail`, `%spam%`}},
		Delete[Account](env).Where(Contains(F(`Email`), Val(`spam`))),
	)
}

func Test_Count(t *testing.T) {
	env := testEnv()

	testQb(t, `SELECT CAST(COUNT(*) AS BIGINT) FROM [Person]`, nil, Count[Person](env))
	testQb(t,
		`SELECT CAST(COUNT(*) AS BIGINT) FROM [Person] WHERE [Age] IS NULL`,
		nil,
		Count[Person](env).Where(Eq(F(`Age`), Val(nil))),
	)
}

func Test_Qb_sticky_errors(t *testing.T) {
	env := testEnv()

	qb := Select[Person](env, nil).
		Where(Eq(F(`Missing`), Val(1))).
		Where(Eq(F(`Name`), Val(`bob`))).
		OrderBy(F(`Name`), DirAsc)

	testQbErr(t, ErrUnknownMember, qb)
	eq(t, 0, len(qb.wheres))
	eq(t, 0, len(qb.ords))
}

func Test_Qb_nil_env(t *testing.T) {
	testQb(t, `SELECT * FROM [Person]`, nil, Select[Person](nil, nil))
	eq(t, true, Default().Cache.Has(CacheKey{typeOf[Person](), ClauseSelect, ``, Default().Meta}))

	testQb(t, `DELETE FROM [Person]`, nil, Delete[Person](&Env{}))
}

func Test_Qb_cache(t *testing.T) {
	env := testEnv()

	t.Run(`structural text is cached per kind and shape`, func(t *testing.T) {
		testQuery(t, Select[Person](env, nil))
		testQuery(t, Select[Person](env, Proj{`Id`}))
		testQuery(t, Select[Person](env, Proj{`Id`}))
		testQuery(t, Count[Person](env))
		testQuery(t, Delete[Person](env))
		testQuery(t, Insert(env, Person{}))
		testQuery(t, Update(env, Person{}, nil))
		testQuery(t, Select[Person](env, nil).OrderBy(F(`Age`), DirAsc).OrderBy(F(`Age`), DirDesc))
		testQuery(t, Select[Person](env, nil).Where(Eq(F(`Age`), Val(1))))

		eq(t, 8, env.Cache.Len())

		for _, key := range []CacheKey{
			{typeOf[Person](), ClauseSelect, ``, env.Meta},
			{typeOf[Person](), ClauseSelect, `(Id)`, env.Meta},
			{typeOf[Person](), ClauseSelectCount, ``, env.Meta},
			{typeOf[Person](), ClauseDelete, ``, env.Meta},
			{typeOf[Person](), ClauseInsert, ``, env.Meta},
			{typeOf[Person](), ClauseUpdate, ``, env.Meta},
			{typeOf[Person](), ClauseOrderBy, `x.Age ASC`, env.Meta},
			{typeOf[Person](), ClauseOrderBy, `x.Age DESC`, env.Meta},
		} {
			eq(t, true, env.Cache.Has(key))
		}
	})

	t.Run(`failed builds are not cached`, func(t *testing.T) {
		before := env.Cache.Len()
		testQbErr(t, ErrUnknownMember, Select[Person](env, Proj{`Id`, `Missing`}))
		testQbErr(t, ErrUnknownMember, Select[Person](env, nil).OrderBy(F(`Missing`), DirAsc))
		eq(t, before, env.Cache.Len())
	})

	t.Run(`successive builds are identical`, func(t *testing.T) {
		one := testQuery(t, Insert(env, Person{Name: `one`}))
		two := testQuery(t, Insert(env, Person{Name: `two`}))
		eq(t, one.Text, two.Text)
	})

	t.Run(`uncached builds are identical`, func(t *testing.T) {
		env := NewEnv(Conf{CacheSize: -1}, env.Log)
		one := testQuery(t, Select[Person](env, Proj{`Name`}).OrderBy(F(`Id`), DirDesc))
		two := testQuery(t, Select[Person](env, Proj{`Name`}).OrderBy(F(`Id`), DirDesc))
		eq(t, `SELECT [Name] FROM [Person] ORDER BY [Id] DESC`, one.Text)
		eq(t, one.Text, two.Text)
		eq(t, 0, env.Cache.Len())
	})
}

func Test_Qb_concurrent(t *testing.T) {
	env := testEnv()
	out := make([]string, 64)
	errs := make([]error, len(out))

	var wg sync.WaitGroup
	for ind := range out {
		ind := ind
		wg.Add(1)
		go func() {
			defer wg.Done()
			query, err := Select[Person](env, Proj{`Id`, `Name`}).
				Where(Eq(F(`Id`), Val(ind))).
				OrderBy(F(`Name`), DirAsc).
				Query()
			out[ind], errs[ind] = query.Text, err
		}()
	}
	wg.Wait()

	for ind := range out {
		noerr(t, errs[ind])
		eq(t, `SELECT [Id], [Name] FROM [Person] WHERE [Id] = @val1 ORDER BY [Name] ASC`, out[ind])
	}
	eq(t, 2, env.Cache.Len())
}

func Test_Query(t *testing.T) {
	query := testQuery(t, Select[Person](testEnv(), nil).Where(And(Eq(F(`Id`), Val(1)), Eq(F(`Name`), Var(`name`, `bob`)))))

	eq(t, query.Text, query.String())
	eq(t, []string{`val1`, `name`}, query.Params.Names())
	eq(t, 2, len(query.Args()))
}
