package elasticsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/predicate"
)

var ErrUnsupportedOperator = errors.New("unsupported operator")

// Query Elasticsearch 查询 DSL 片段
type Query = map[string]any

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`)

// BuildQuery 将谓词树翻译为查询 DSL；nil 谓词返回 match_all。
// 多个条件放在 bool.filter 中，不参与评分。
func BuildQuery(e predicate.Expr) (Query, error) {
	switch t := e.(type) {
	case nil:
		return Query{"match_all": Query{}}, nil

	case predicate.Cond:
		return buildCond(t)

	case predicate.And:
		subs := t.Exprs()
		clauses := make([]any, 0, len(subs))
		for _, sub := range subs {
			if sub == nil {
				continue
			}
			q, err := BuildQuery(sub)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, q)
		}
		switch len(clauses) {
		case 0:
			return Query{"match_all": Query{}}, nil
		case 1:
			return clauses[0].(Query), nil
		}
		return Query{"bool": Query{"filter": clauses}}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate %T", e)
	}
}

func esValue(v any) any {
	switch t := v.(type) {
	case uuid.UUID:
		return t.String()
	case decimal.Decimal:
		return json.Number(t.String())
	default:
		return v
	}
}

func esValues(vs []any) []any {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		out = append(out, esValue(v))
	}
	return out
}

// likeToWildcard 将 SQL LIKE 模式转换为 wildcard 模式
func likeToWildcard(pattern string) string {
	var sb strings.Builder

	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			sb.WriteString(wildcardEscaper.Replace(string(r)))
			escaped = false
		case r == predicate.LikeEscapeChar:
			escaped = true
		case r == '%':
			sb.WriteByte('*')
		case r == '_':
			sb.WriteByte('?')
		default:
			sb.WriteString(wildcardEscaper.Replace(string(r)))
		}
	}
	if escaped {
		sb.WriteRune(predicate.LikeEscapeChar)
	}
	return sb.String()
}

func not(q Query) Query {
	return Query{"bool": Query{"must_not": []any{q}}}
}

func wildcard(field, pattern string, caseInsensitive bool) Query {
	body := Query{"value": pattern}
	if caseInsensitive {
		body["case_insensitive"] = true
	}
	return Query{"wildcard": Query{field: body}}
}

func rangeQuery(field string, bounds Query) Query {
	return Query{"range": Query{field: bounds}}
}

func buildCond(c predicate.Cond) (Query, error) {
	field := c.Path()
	op := c.Operator()
	v := esValue(c.Value())

	switch op {
	case pagination.OperatorEQ:
		return Query{"term": Query{field: v}}, nil
	case pagination.OperatorNEQ:
		return not(Query{"term": Query{field: v}}), nil
	case pagination.OperatorGT:
		return rangeQuery(field, Query{"gt": v}), nil
	case pagination.OperatorGTE:
		return rangeQuery(field, Query{"gte": v}), nil
	case pagination.OperatorLT:
		return rangeQuery(field, Query{"lt": v}), nil
	case pagination.OperatorLTE:
		return rangeQuery(field, Query{"lte": v}), nil

	case pagination.OperatorIn:
		return Query{"terms": Query{field: esValues(c.Values())}}, nil
	case pagination.OperatorNIn:
		return not(Query{"terms": Query{field: esValues(c.Values())}}), nil

	case pagination.OperatorLike:
		return wildcard(field, likeToWildcard(pagination.AnyToString(v)), false), nil
	case pagination.OperatorNotLike:
		return not(wildcard(field, likeToWildcard(pagination.AnyToString(v)), false)), nil

	case pagination.OperatorContains:
		return wildcard(field, "*"+wildcardEscaper.Replace(pagination.AnyToString(v))+"*", false), nil
	case pagination.OperatorIContains:
		return wildcard(field, "*"+wildcardEscaper.Replace(pagination.AnyToString(v))+"*", true), nil
	case pagination.OperatorNotContains:
		return not(wildcard(field, "*"+wildcardEscaper.Replace(pagination.AnyToString(v))+"*", false)), nil
	case pagination.OperatorStartsWith:
		return Query{"prefix": Query{field: pagination.AnyToString(v)}}, nil
	case pagination.OperatorEndsWith:
		return wildcard(field, "*"+wildcardEscaper.Replace(pagination.AnyToString(v)), false), nil

	case pagination.OperatorIsNull:
		return not(Query{"exists": Query{"field": field}}), nil
	case pagination.OperatorIsNotNull:
		return Query{"exists": Query{"field": field}}, nil

	case pagination.OperatorBetween:
		vals := c.Values()
		if len(vals) != 2 {
			return nil, fmt.Errorf("between on %q requires 2 values, got %d", field, len(vals))
		}
		return rangeQuery(field, Query{"gte": esValue(vals[0]), "lte": esValue(vals[1])}), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op.String())
}

// BuildSort 将排序项翻译为 sort 数组，保持顺序
func BuildSort(orders []predicate.Order) []any {
	if len(orders) == 0 {
		return nil
	}
	out := make([]any, 0, len(orders))
	for _, o := range orders {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		out = append(out, Query{o.Path: Query{"order": dir}})
	}
	return out
}
