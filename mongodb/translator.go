package mongodb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	bsonV2 "go.mongodb.org/mongo-driver/v2/bson"

	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/predicate"
)

var ErrUnsupportedOperator = errors.New("unsupported operator")

// BuildFilter 将谓词树翻译为 MongoDB 过滤文档；nil 谓词返回空文档
func BuildFilter(e predicate.Expr) (bsonV2.M, error) {
	switch t := e.(type) {
	case nil:
		return bsonV2.M{}, nil

	case predicate.Cond:
		return buildCond(t)

	case predicate.And:
		subs := t.Exprs()
		conds := make(bsonV2.A, 0, len(subs))
		for _, sub := range subs {
			m, err := BuildFilter(sub)
			if err != nil {
				return nil, err
			}
			if len(m) > 0 {
				conds = append(conds, m)
			}
		}
		switch len(conds) {
		case 0:
			return bsonV2.M{}, nil
		case 1:
			return conds[0].(bsonV2.M), nil
		}
		return bsonV2.M{"$and": conds}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate %T", e)
	}
}

// bsonValue 转换 BSON 无法直接编码的取值
func bsonValue(v any) any {
	switch t := v.(type) {
	case uuid.UUID:
		return t.String()
	case decimal.Decimal:
		if d, err := bsonV2.ParseDecimal128(t.String()); err == nil {
			return d
		}
		return t.String()
	default:
		return v
	}
}

func bsonValues(vs []any) bsonV2.A {
	out := make(bsonV2.A, 0, len(vs))
	for _, v := range vs {
		out = append(out, bsonValue(v))
	}
	return out
}

// likeToRegex 将 SQL LIKE 模式转换为锚定的正则表达式，% 与 _ 为通配符，! 为转义字符
func likeToRegex(pattern string) string {
	var sb strings.Builder
	sb.WriteByte('^')

	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == predicate.LikeEscapeChar:
			escaped = true
		case r == '%':
			sb.WriteString(".*")
		case r == '_':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		sb.WriteString(regexp.QuoteMeta(string(predicate.LikeEscapeChar)))
	}

	sb.WriteByte('$')
	return sb.String()
}

func literalRegex(op pagination.Operator, value string) bsonV2.Regex {
	quoted := regexp.QuoteMeta(value)
	switch op {
	case pagination.OperatorStartsWith:
		return bsonV2.Regex{Pattern: "^" + quoted}
	case pagination.OperatorEndsWith:
		return bsonV2.Regex{Pattern: quoted + "$"}
	case pagination.OperatorIContains:
		return bsonV2.Regex{Pattern: quoted, Options: "i"}
	default:
		return bsonV2.Regex{Pattern: quoted}
	}
}

func buildCond(c predicate.Cond) (bsonV2.M, error) {
	key := c.Path()
	op := c.Operator()
	v := bsonValue(c.Value())

	switch op {
	case pagination.OperatorEQ:
		return bsonV2.M{key: v}, nil
	case pagination.OperatorNEQ:
		return bsonV2.M{key: bsonV2.M{"$ne": v}}, nil
	case pagination.OperatorGT:
		return bsonV2.M{key: bsonV2.M{"$gt": v}}, nil
	case pagination.OperatorGTE:
		return bsonV2.M{key: bsonV2.M{"$gte": v}}, nil
	case pagination.OperatorLT:
		return bsonV2.M{key: bsonV2.M{"$lt": v}}, nil
	case pagination.OperatorLTE:
		return bsonV2.M{key: bsonV2.M{"$lte": v}}, nil

	case pagination.OperatorIn:
		return bsonV2.M{key: bsonV2.M{"$in": bsonValues(c.Values())}}, nil
	case pagination.OperatorNIn:
		return bsonV2.M{key: bsonV2.M{"$nin": bsonValues(c.Values())}}, nil

	case pagination.OperatorLike:
		return bsonV2.M{key: bsonV2.Regex{Pattern: likeToRegex(pagination.AnyToString(v))}}, nil
	case pagination.OperatorNotLike:
		return bsonV2.M{key: bsonV2.M{"$not": bsonV2.Regex{Pattern: likeToRegex(pagination.AnyToString(v))}}}, nil

	case pagination.OperatorContains, pagination.OperatorIContains,
		pagination.OperatorStartsWith, pagination.OperatorEndsWith:
		return bsonV2.M{key: literalRegex(op, pagination.AnyToString(v))}, nil
	case pagination.OperatorNotContains:
		return bsonV2.M{key: bsonV2.M{"$not": literalRegex(op, pagination.AnyToString(v))}}, nil

	case pagination.OperatorIsNull:
		return bsonV2.M{key: nil}, nil
	case pagination.OperatorIsNotNull:
		return bsonV2.M{key: bsonV2.M{"$ne": nil}}, nil

	case pagination.OperatorBetween:
		vals := c.Values()
		if len(vals) != 2 {
			return nil, fmt.Errorf("between on %q requires 2 values, got %d", key, len(vals))
		}
		return bsonV2.M{key: bsonV2.M{"$gte": bsonValue(vals[0]), "$lte": bsonValue(vals[1])}}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op.String())
}

// BuildSort 将排序项翻译为有序的排序文档
func BuildSort(orders []predicate.Order) bsonV2.D {
	if len(orders) == 0 {
		return nil
	}
	d := make(bsonV2.D, 0, len(orders))
	for _, o := range orders {
		dir := 1
		if o.Desc {
			dir = -1
		}
		d = append(d, bsonV2.E{Key: o.Path, Value: dir})
	}
	return d
}
