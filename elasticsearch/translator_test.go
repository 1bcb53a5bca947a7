package elasticsearch

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/pagination/filter"
	"github.com/tx7do/go-crud-guard/pagination/sorting"
	"github.com/tx7do/go-crud-guard/predicate"
)

func newTestCatalog() *catalog.Catalog {
	return catalog.New().MustRegister(catalog.Entity{
		Name: "person",
		Fields: []catalog.FieldMapping{
			catalog.Field("name", "name", catalog.TypeString,
				pagination.OperatorEQ, pagination.OperatorNEQ, pagination.OperatorContains,
				pagination.OperatorNotContains, pagination.OperatorIContains, pagination.OperatorStartsWith,
				pagination.OperatorEndsWith, pagination.OperatorLike, pagination.OperatorNotLike,
				pagination.OperatorIn).AsSortable(),
			catalog.Field("age", "age", catalog.TypeInt,
				pagination.OperatorGT, pagination.OperatorLTE, pagination.OperatorBetween, pagination.OperatorNIn).AsSortable(),
			catalog.Field("city", "address.city", catalog.TypeString, pagination.OperatorEQ),
			catalog.Field("balance", "balance", catalog.TypeDecimal, pagination.OperatorGTE),
			catalog.Field("deleted_at", "deleted_at", catalog.TypeTime, pagination.OperatorIsNull, pagination.OperatorIsNotNull),
		},
	})
}

// buildQuery 经 JSON 往返后比较，与发送到服务端的内容一致
func buildQuery(t *testing.T, params map[string][]string) map[string]any {
	t.Helper()
	spec, err := filter.NewBinder(newTestCatalog()).Bind("person", params)
	require.NoError(t, err)
	q, err := BuildQuery(predicate.Compile(spec))
	require.NoError(t, err)

	b, err := json.Marshal(q)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestBuildQuery_Empty(t *testing.T) {
	q, err := BuildQuery(nil)
	require.NoError(t, err)
	assert.Equal(t, Query{"match_all": Query{}}, q)
}

func TestBuildQuery_Operators(t *testing.T) {
	cases := []struct {
		name   string
		params map[string][]string
		want   string
	}{
		{"eq", map[string][]string{"name": {"ann"}}, `{"term":{"name":"ann"}}`},
		{"neq", map[string][]string{"name__ne": {"ann"}}, `{"bool":{"must_not":[{"term":{"name":"ann"}}]}}`},
		{"gt", map[string][]string{"age__gt": {"30"}}, `{"range":{"age":{"gt":30}}}`},
		{"in", map[string][]string{"name__in": {"a,b"}}, `{"terms":{"name":["a","b"]}}`},
		{"nin", map[string][]string{"age__nin": {"1", "2"}}, `{"bool":{"must_not":[{"terms":{"age":[1,2]}}]}}`},
		{"between", map[string][]string{"age__between": {"18,65"}}, `{"range":{"age":{"gte":18,"lte":65}}}`},
		{"decimal", map[string][]string{"balance__gte": {"10.50"}}, `{"range":{"balance":{"gte":10.5}}}`},
		{"contains", map[string][]string{"name__contains": {"a*b"}}, `{"wildcard":{"name":{"value":"*a\\*b*"}}}`},
		{"icontains", map[string][]string{"name__icontains": {"An"}}, `{"wildcard":{"name":{"value":"*An*","case_insensitive":true}}}`},
		{"not_contains", map[string][]string{"name__not_contains": {"x"}}, `{"bool":{"must_not":[{"wildcard":{"name":{"value":"*x*"}}}]}}`},
		{"starts_with", map[string][]string{"name__starts_with": {"An"}}, `{"prefix":{"name":"An"}}`},
		{"ends_with", map[string][]string{"name__ends_with": {"?"}}, `{"wildcard":{"name":{"value":"*\\?"}}}`},
		{"like", map[string][]string{"name__like": {"A_n%"}}, `{"wildcard":{"name":{"value":"A?n*"}}}`},
		{"not_like", map[string][]string{"name__not_like": {"A!%"}}, `{"bool":{"must_not":[{"wildcard":{"name":{"value":"A%"}}}]}}`},
		{"is_null", map[string][]string{"deleted_at__is_null": {""}}, `{"bool":{"must_not":[{"exists":{"field":"deleted_at"}}]}}`},
		{"is_not_null", map[string][]string{"deleted_at__is_not_null": {""}}, `{"exists":{"field":"deleted_at"}}`},
		{"nested", map[string][]string{"city": {"Oslo"}}, `{"term":{"address.city":"Oslo"}}`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := buildQuery(t, c.params)
			if diff := cmp.Diff(decode(t, c.want), got); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildQuery_And(t *testing.T) {
	got := buildQuery(t, map[string][]string{
		"name":    {"ann"},
		"age__gt": {"30"},
	})

	b, ok := got["bool"].(map[string]any)
	require.True(t, ok)
	clauses, ok := b["filter"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{
		decode(t, `{"term":{"name":"ann"}}`),
		decode(t, `{"range":{"age":{"gt":30}}}`),
	}, clauses)
}

func TestLikeToWildcard(t *testing.T) {
	assert.Equal(t, "a*b?c", likeToWildcard("a%b_c"))
	assert.Equal(t, "100%", likeToWildcard("100!%"))
	assert.Equal(t, `\*x!`, likeToWildcard("*x!"))
}

func TestBuildSort(t *testing.T) {
	spec, err := sorting.NewBinder(newTestCatalog()).Bind("person", map[string][]string{"sort": {"-age,name"}})
	require.NoError(t, err)

	got := BuildSort(predicate.CompileSort(spec))
	want := []any{
		Query{"age": Query{"order": "desc"}},
		Query{"name": Query{"order": "asc"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, BuildSort(nil))
}
