package entgo

import (
	"context"
	"testing"

	entSql "entgo.io/ent/dialect/sql"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/config"
	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/pagination/filter"
	"github.com/tx7do/go-crud-guard/pagination/sorting"
	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/sqlx"
	"github.com/tx7do/go-crud-guard/store"
)

type member struct {
	ID    int64
	Name  string
	Age   int
	Email *string
}

var memberTable = sqlx.Table[member]{
	Name:          "members",
	PrimaryKey:    "id",
	Columns:       []string{"id", "name", "age", "email"},
	InsertColumns: []string{"name", "age", "email"},
	Values:        func(m *member) []any { return []any{m.Name, m.Age, m.Email} },
	Scan: func(row sq.RowScanner) (*member, error) {
		var m member
		if err := row.Scan(&m.ID, &m.Name, &m.Age, &m.Email); err != nil {
			return nil, err
		}
		return &m, nil
	},
	SetID: func(m *member, id int64) { m.ID = id },
}

func newTestCatalog() *catalog.Catalog {
	return catalog.New().MustRegister(catalog.Entity{
		Name: "member",
		Fields: []catalog.FieldMapping{
			catalog.Field("id", "id", catalog.TypeInt, pagination.OperatorEQ, pagination.OperatorIn).AsSortable(),
			catalog.Field("name", "name", catalog.TypeString,
				pagination.OperatorEQ, pagination.OperatorNEQ, pagination.OperatorContains,
				pagination.OperatorNotContains, pagination.OperatorIContains, pagination.OperatorStartsWith,
				pagination.OperatorEndsWith, pagination.OperatorLike, pagination.OperatorNotLike).AsSortable(),
			catalog.Field("age", "age", catalog.TypeInt,
				pagination.OperatorGT, pagination.OperatorLTE, pagination.OperatorBetween, pagination.OperatorNIn).AsSortable(),
			catalog.Field("email", "email", catalog.TypeString, pagination.OperatorIsNull, pagination.OperatorIsNotNull),
		},
	})
}

func newTestStore(t *testing.T, name string) (*Store[member, int64], *entSql.Driver) {
	t.Helper()
	drv, err := CreateDriver(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })

	_, err = drv.DB().Exec("CREATE TABLE `members` (`id` INTEGER PRIMARY KEY AUTOINCREMENT, `name` TEXT NOT NULL UNIQUE, `age` INTEGER, `email` TEXT)")
	require.NoError(t, err)

	s, err := NewStore[member, int64](drv, memberTable, nil)
	require.NoError(t, err)
	return s, drv
}

func seed(t *testing.T, s *Store[member, int64]) {
	t.Helper()
	mail := "ann@example.com"
	_, err := s.CreateBulk(context.Background(), []*member{
		{Name: "ann", Age: 31, Email: &mail},
		{Name: "bob_2", Age: 40},
		{Name: "Carl", Age: 25},
		{Name: "100%", Age: 50},
	})
	require.NoError(t, err)
}

func where(t *testing.T, params map[string][]string) predicate.Expr {
	t.Helper()
	spec, err := filter.NewBinder(newTestCatalog()).Bind("member", params)
	require.NoError(t, err)
	return predicate.Compile(spec)
}

func names(items []*member) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.Name)
	}
	return out
}

func TestCreateDriver_UnsupportedDriver(t *testing.T) {
	_, err := CreateDriver(config.DatabaseConfig{Driver: "clickhouse", DSN: "clickhouse://127.0.0.1:9000"})
	assert.Error(t, err)
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore[member, int64](nil, memberTable, nil)
	assert.Error(t, err)

	_, drv := newTestStore(t, "ent_validation")
	bad := memberTable
	bad.Name = "members; DROP TABLE members"
	_, err = NewStore[member, int64](drv, bad, nil)
	assert.Error(t, err)
}

func TestStore_QueryOperators(t *testing.T) {
	s, _ := newTestStore(t, "ent_operators")
	seed(t, s)
	ctx := context.Background()

	cases := []struct {
		name   string
		params map[string][]string
		want   []string
	}{
		{"eq", map[string][]string{"name": {"ann"}}, []string{"ann"}},
		{"neq", map[string][]string{"name__ne": {"ann"}}, []string{"bob_2", "Carl", "100%"}},
		{"gt", map[string][]string{"age__gt": {"30"}}, []string{"ann", "bob_2", "100%"}},
		{"between", map[string][]string{"age__between": {"25,31"}}, []string{"ann", "Carl"}},
		{"nin", map[string][]string{"age__nin": {"25,40"}}, []string{"ann", "100%"}},
		{"contains literal underscore", map[string][]string{"name__contains": {"_"}}, []string{"bob_2"}},
		{"contains literal percent", map[string][]string{"name__contains": {"%"}}, []string{"100%"}},
		{"icontains", map[string][]string{"name__icontains": {"car"}}, []string{"Carl"}},
		{"starts_with", map[string][]string{"name__starts_with": {"bo"}}, []string{"bob_2"}},
		{"ends_with", map[string][]string{"name__ends_with": {"rl"}}, []string{"Carl"}},
		{"not_contains", map[string][]string{"name__not_contains": {"a"}}, []string{"bob_2", "100%"}},
		{"like", map[string][]string{"name__like": {"b_b%"}}, []string{"bob_2"}},
		{"is_null", map[string][]string{"email__is_null": {""}}, []string{"bob_2", "Carl", "100%"}},
		{"is_not_null", map[string][]string{"email__is_not_null": {""}}, []string{"ann"}},
		{"and", map[string][]string{"age__gt": {"30"}, "age__lte": {"40"}}, []string{"ann", "bob_2"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			items, err := s.Query(ctx, where(t, c.params), []predicate.Order{{Path: "id"}}, 0, 10)
			require.NoError(t, err)
			assert.Equal(t, c.want, names(items))
		})
	}
}

func TestStore_SortPagingCount(t *testing.T) {
	s, _ := newTestStore(t, "ent_paging")
	seed(t, s)
	ctx := context.Background()

	spec, err := sorting.NewBinder(newTestCatalog()).Bind("member", map[string][]string{"sort": {"-age"}})
	require.NoError(t, err)

	items, err := s.Query(ctx, nil, predicate.CompileSort(spec), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob_2", "ann"}, names(items))

	n, err := s.Count(ctx, where(t, map[string][]string{"age__gt": {"30"}}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_TxAndDelete(t *testing.T) {
	s, _ := newTestStore(t, "ent_tx")
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	created, err := tx.CreateBulk(ctx, []*member{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created[1].ID)
	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), store.ErrTxDone)

	n, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	seed(t, s)
	all, err := s.Query(ctx, nil, []predicate.Order{{Path: "id"}}, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)

	require.NoError(t, s.Delete(ctx, all[0].ID))
	assert.ErrorIs(t, s.Delete(ctx, all[0].ID), store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteBulk(ctx, []int64{all[1].ID, 999}), store.ErrNotFound)
	n, err = s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "missing id rolls back the whole delete")

	require.NoError(t, s.DeleteBulk(ctx, []int64{all[1].ID, all[2].ID, all[1].ID}))
	n, err = s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Create(ctx, &member{Name: all[3].Name})
	assert.Error(t, err)
}

func TestBuildSelector_Modifier(t *testing.T) {
	fn, err := BuildSelector(nil)
	require.NoError(t, err)
	assert.Nil(t, fn)
	assert.Nil(t, BuildOrder(nil))

	fn, err = BuildSelector(where(t, map[string][]string{"name": {"ann"}, "age__gt": {"30"}}))
	require.NoError(t, err)
	require.NotNil(t, fn)

	sel := entSql.Select("*").From(entSql.Table("members"))
	fn(sel)
	BuildOrder([]predicate.Order{{Path: "age", Desc: true}})(sel)

	query, args := sel.Query()
	assert.Contains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY")
	assert.ElementsMatch(t, []any{"ann", int64(30)}, args)
}
