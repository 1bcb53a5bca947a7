package gorm

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/predicate"
)

var ErrUnsupportedOperator = errors.New("unsupported operator")

// likeEscape 与 predicate.LikeEscapeChar 一致
const likeEscape = "'" + string(predicate.LikeEscapeChar) + "'"

// column 点分隔路径由方言按片段加引号，如 `orders`.`name`
func column(path string) clause.Column {
	return clause.Column{Name: path}
}

// BuildWhere 将谓词树翻译为 GORM 条件表达式，nil 表示没有条件
func BuildWhere(e predicate.Expr) (clause.Expression, error) {
	switch t := e.(type) {
	case nil:
		return nil, nil

	case predicate.Cond:
		return buildCond(t)

	case predicate.And:
		subs := t.Exprs()
		exprs := make([]clause.Expression, 0, len(subs))
		for _, sub := range subs {
			expr, err := BuildWhere(sub)
			if err != nil {
				return nil, err
			}
			if expr != nil {
				exprs = append(exprs, expr)
			}
		}
		if len(exprs) == 0 {
			return nil, nil
		}
		return clause.And(exprs...), nil

	default:
		return nil, fmt.Errorf("unsupported predicate %T", e)
	}
}

func buildCond(c predicate.Cond) (clause.Expression, error) {
	col := column(c.Path())
	op := c.Operator()
	v := c.Value()

	switch op {
	case pagination.OperatorEQ:
		return clause.Eq{Column: col, Value: v}, nil
	case pagination.OperatorNEQ:
		return clause.Neq{Column: col, Value: v}, nil
	case pagination.OperatorGT:
		return clause.Gt{Column: col, Value: v}, nil
	case pagination.OperatorGTE:
		return clause.Gte{Column: col, Value: v}, nil
	case pagination.OperatorLT:
		return clause.Lt{Column: col, Value: v}, nil
	case pagination.OperatorLTE:
		return clause.Lte{Column: col, Value: v}, nil

	case pagination.OperatorIn:
		return clause.IN{Column: col, Values: c.Values()}, nil
	case pagination.OperatorNIn:
		return clause.Not(clause.IN{Column: col, Values: c.Values()}), nil

	case pagination.OperatorLike:
		return clause.Like{Column: col, Value: v}, nil
	case pagination.OperatorNotLike:
		return clause.Not(clause.Like{Column: col, Value: v}), nil

	case pagination.OperatorContains, pagination.OperatorStartsWith, pagination.OperatorEndsWith:
		return clause.Expr{
			SQL:  "? LIKE ? ESCAPE " + likeEscape,
			Vars: []any{col, predicate.LikePattern(op, pagination.AnyToString(v))},
		}, nil
	case pagination.OperatorNotContains:
		return clause.Expr{
			SQL:  "? NOT LIKE ? ESCAPE " + likeEscape,
			Vars: []any{col, predicate.LikePattern(op, pagination.AnyToString(v))},
		}, nil
	case pagination.OperatorIContains:
		return clause.Expr{
			SQL:  "LOWER(?) LIKE LOWER(?) ESCAPE " + likeEscape,
			Vars: []any{col, predicate.LikePattern(op, pagination.AnyToString(v))},
		}, nil

	case pagination.OperatorIsNull:
		return clause.Eq{Column: col, Value: nil}, nil
	case pagination.OperatorIsNotNull:
		return clause.Neq{Column: col, Value: nil}, nil

	case pagination.OperatorBetween:
		vals := c.Values()
		if len(vals) != 2 {
			return nil, fmt.Errorf("between on %q requires 2 values, got %d", c.Path(), len(vals))
		}
		return clause.Expr{SQL: "? BETWEEN ? AND ?", Vars: []any{col, vals[0], vals[1]}}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op.String())
}

// BuildOrderBy 将排序项翻译为 ORDER BY 子句
func BuildOrderBy(orders []predicate.Order) clause.OrderBy {
	cols := make([]clause.OrderByColumn, 0, len(orders))
	for _, o := range orders {
		cols = append(cols, clause.OrderByColumn{Column: column(o.Path), Desc: o.Desc})
	}
	return clause.OrderBy{Columns: cols}
}

// WhereScope 根据谓词树构建 GORM scope，翻译失败时把错误挂到 db 上
func WhereScope(e predicate.Expr) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		expr, err := BuildWhere(e)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		if expr == nil {
			return db
		}
		return db.Clauses(clause.Where{Exprs: []clause.Expression{expr}})
	}
}

// OrderScope 根据排序项构建 GORM scope（可与 db.Scopes 一起使用）
func OrderScope(orders []predicate.Order) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(orders) == 0 {
			return db
		}
		return db.Clauses(BuildOrderBy(orders))
	}
}

// PagingScope 偏移分页，limit <= 0 时不分页
func PagingScope(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		if offset < 0 {
			offset = 0
		}
		return db.Offset(offset).Limit(limit)
	}
}
