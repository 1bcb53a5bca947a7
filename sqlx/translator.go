package sqlx

import (
	"database/sql/driver"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/predicate"
)

var ErrUnsupportedOperator = errors.New("unsupported operator")

const likeEscape = " ESCAPE '" + string(predicate.LikeEscapeChar) + "'"

// BuildWhere 将谓词树翻译为 squirrel 条件，nil 表示没有条件
func (d Dialect) BuildWhere(e predicate.Expr) (sq.Sqlizer, error) {
	switch t := e.(type) {
	case nil:
		return nil, nil

	case predicate.Cond:
		return d.buildCond(t)

	case predicate.And:
		subs := t.Exprs()
		and := make(sq.And, 0, len(subs))
		for _, sub := range subs {
			s, err := d.BuildWhere(sub)
			if err != nil {
				return nil, err
			}
			if s != nil {
				and = append(and, s)
			}
		}
		switch len(and) {
		case 0:
			return nil, nil
		case 1:
			return and[0], nil
		}
		return and, nil

	default:
		return nil, fmt.Errorf("unsupported predicate %T", e)
	}
}

// sqlValue uuid.UUID 是数组类型，squirrel 会把它当作 IN 列表，
// 因此实现了 driver.Valuer 的取值先转换为驱动值
func sqlValue(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		if dv, err := valuer.Value(); err == nil {
			return dv
		}
	}
	return v
}

func sqlValues(vs []any) []any {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		out = append(out, sqlValue(v))
	}
	return out
}

func (d Dialect) buildCond(c predicate.Cond) (sq.Sqlizer, error) {
	col := d.QuotePath(c.Path())
	op := c.Operator()
	v := sqlValue(c.Value())

	switch op {
	case pagination.OperatorEQ:
		return sq.Eq{col: v}, nil
	case pagination.OperatorNEQ:
		return sq.NotEq{col: v}, nil
	case pagination.OperatorGT:
		return sq.Gt{col: v}, nil
	case pagination.OperatorGTE:
		return sq.GtOrEq{col: v}, nil
	case pagination.OperatorLT:
		return sq.Lt{col: v}, nil
	case pagination.OperatorLTE:
		return sq.LtOrEq{col: v}, nil

	case pagination.OperatorIn:
		return sq.Eq{col: sqlValues(c.Values())}, nil
	case pagination.OperatorNIn:
		return sq.NotEq{col: sqlValues(c.Values())}, nil

	case pagination.OperatorLike:
		return sq.Like{col: v}, nil
	case pagination.OperatorNotLike:
		return sq.NotLike{col: v}, nil

	case pagination.OperatorContains, pagination.OperatorStartsWith, pagination.OperatorEndsWith:
		return sq.Expr(col+" LIKE ?"+likeEscape, predicate.LikePattern(op, pagination.AnyToString(v))), nil
	case pagination.OperatorNotContains:
		return sq.Expr(col+" NOT LIKE ?"+likeEscape, predicate.LikePattern(op, pagination.AnyToString(v))), nil
	case pagination.OperatorIContains:
		return sq.Expr("LOWER("+col+") LIKE LOWER(?)"+likeEscape, predicate.LikePattern(op, pagination.AnyToString(v))), nil

	case pagination.OperatorIsNull:
		return sq.Eq{col: nil}, nil
	case pagination.OperatorIsNotNull:
		return sq.NotEq{col: nil}, nil

	case pagination.OperatorBetween:
		vals := c.Values()
		if len(vals) != 2 {
			return nil, fmt.Errorf("between on %q requires 2 values, got %d", c.Path(), len(vals))
		}
		return sq.Expr(col+" BETWEEN ? AND ?", sqlValue(vals[0]), sqlValue(vals[1])), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op.String())
}

// BuildOrderBy 将排序项翻译为 ORDER BY 片段
func (d Dialect) BuildOrderBy(orders []predicate.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.Desc {
			out = append(out, d.QuotePath(o.Path)+" DESC")
		} else {
			out = append(out, d.QuotePath(o.Path)+" ASC")
		}
	}
	return out
}
