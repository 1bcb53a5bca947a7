package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/pagination/filter"
	"github.com/tx7do/go-crud-guard/pagination/sorting"
)

func newCatalog() *catalog.Catalog {
	return catalog.New().MustRegister(catalog.Entity{
		Name: "order",
		Fields: []catalog.FieldMapping{
			catalog.Field("orders_name", "orders.name", catalog.TypeString,
				pagination.OperatorContains, pagination.OperatorEQ).AsSortable(),
			catalog.Field("qty", "qty", catalog.TypeInt, pagination.OperatorGTE, pagination.OperatorIn).AsSortable(),
			catalog.Field("deleted_at", "deleted_at", catalog.TypeTime, pagination.OperatorIsNull),
		},
	})
}

func TestCompile_Empty(t *testing.T) {
	assert.Nil(t, Compile(nil))

	spec, err := filter.NewBinder(newCatalog()).Bind("order", nil)
	require.NoError(t, err)
	assert.Nil(t, Compile(spec))
}

func TestCompile_Single(t *testing.T) {
	spec, err := filter.NewBinder(newCatalog()).Bind("order", map[string][]string{"qty__gte": {"3"}})
	require.NoError(t, err)

	e := Compile(spec)
	c, ok := e.(Cond)
	require.True(t, ok)
	assert.Equal(t, "qty", c.Path())
	assert.Equal(t, pagination.OperatorGTE, c.Operator())
	assert.Equal(t, int64(3), c.Value())
}

func TestCompile_AndPreservesOrder(t *testing.T) {
	spec, err := filter.NewBinder(newCatalog()).Bind("order", map[string][]string{
		"qty__in":               {"1,2"},
		"orders_name__contains": {"ab"},
		"deleted_at__is_null":   {""},
	})
	require.NoError(t, err)

	e := Compile(spec)
	and, ok := e.(And)
	require.True(t, ok)
	require.Len(t, and.Exprs(), 3)

	conds := Conds(e)
	assert.Equal(t, "deleted_at", conds[0].Path())
	assert.Equal(t, []string{"orders", "name"}, conds[1].Segments())
	assert.Equal(t, []any{int64(1), int64(2)}, conds[2].Values())

	assert.Equal(t, "(deleted_at IS_NULL) AND (orders.name CONTAINS ab) AND (qty IN 1,2)", e.String())
}

func TestCompileSort(t *testing.T) {
	assert.Nil(t, CompileSort(nil))

	spec, err := sorting.NewBinder(newCatalog()).Bind("order", map[string][]string{"sort": {"-qty,orders.name"}})
	require.NoError(t, err)

	orders := CompileSort(spec)
	assert.Equal(t, []Order{{Path: "qty", Desc: true}, {Path: "orders.name"}}, orders)
	assert.Equal(t, "qty desc", orders[0].String())
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%50!%!_off%", LikePattern(pagination.OperatorContains, "50%_off"))
	assert.Equal(t, "ab%", LikePattern(pagination.OperatorStartsWith, "ab"))
	assert.Equal(t, "%a!!b", LikePattern(pagination.OperatorEndsWith, "a!b"))
	assert.Equal(t, "a%b_", LikePattern(pagination.OperatorLike, "a%b_"))
	assert.True(t, NeedsEscape(pagination.OperatorIContains))
	assert.False(t, NeedsEscape(pagination.OperatorLike))
}
