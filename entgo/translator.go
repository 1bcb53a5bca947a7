package entgo

import (
	"database/sql/driver"
	"errors"
	"fmt"

	entSql "entgo.io/ent/dialect/sql"

	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/predicate"
)

var ErrUnsupportedOperator = errors.New("unsupported operator")

const likeEscape = " ESCAPE '" + string(predicate.LikeEscapeChar) + "'"

// predFunc 在具体的 Selector 上生成谓词，列名按 Selector 的表限定
type predFunc func(s *entSql.Selector) *entSql.Predicate

// BuildSelector 将谓词树翻译为 ent 的查询修饰函数，可直接传给生成代码的 Where/Modify。
// nil 谓词返回 nil。
func BuildSelector(e predicate.Expr) (func(s *entSql.Selector), error) {
	pf, err := build(e)
	if err != nil || pf == nil {
		return nil, err
	}
	return func(s *entSql.Selector) {
		s.Where(pf(s))
	}, nil
}

// BuildOrder 将排序项翻译为 ent 的排序修饰函数
func BuildOrder(orders []predicate.Order) func(s *entSql.Selector) {
	if len(orders) == 0 {
		return nil
	}
	return func(s *entSql.Selector) {
		for _, o := range orders {
			if o.Desc {
				s.OrderBy(entSql.Desc(s.C(o.Path)))
			} else {
				s.OrderBy(entSql.Asc(s.C(o.Path)))
			}
		}
	}
}

func build(e predicate.Expr) (predFunc, error) {
	switch t := e.(type) {
	case nil:
		return nil, nil

	case predicate.Cond:
		return buildCond(t)

	case predicate.And:
		subs := t.Exprs()
		fns := make([]predFunc, 0, len(subs))
		for _, sub := range subs {
			pf, err := build(sub)
			if err != nil {
				return nil, err
			}
			if pf != nil {
				fns = append(fns, pf)
			}
		}
		switch len(fns) {
		case 0:
			return nil, nil
		case 1:
			return fns[0], nil
		}
		return func(s *entSql.Selector) *entSql.Predicate {
			ps := make([]*entSql.Predicate, 0, len(fns))
			for _, pf := range fns {
				ps = append(ps, pf(s))
			}
			return entSql.And(ps...)
		}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate %T", e)
	}
}

// argValue uuid.UUID 等实现了 driver.Valuer 的取值先转换为驱动值
func argValue(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		if dv, err := valuer.Value(); err == nil {
			return dv
		}
	}
	return v
}

func argValues(vs []any) []any {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		out = append(out, argValue(v))
	}
	return out
}

// likePredicate 生成带转义子句的 LIKE，fold 为 true 时两侧取小写
func likePredicate(col, pattern string, fold, negate bool) *entSql.Predicate {
	return entSql.P(func(b *entSql.Builder) {
		if fold {
			b.WriteString("LOWER(").Ident(col).WriteString(")")
		} else {
			b.Ident(col)
		}
		if negate {
			b.WriteString(" NOT")
		}
		b.WriteString(" LIKE ")
		if fold {
			b.WriteString("LOWER(").Arg(pattern).WriteString(")")
		} else {
			b.Arg(pattern)
		}
		b.WriteString(likeEscape)
	})
}

func buildCond(c predicate.Cond) (predFunc, error) {
	path := c.Path()
	op := c.Operator()
	v := argValue(c.Value())

	simple := func(fn func(col string) *entSql.Predicate) predFunc {
		return func(s *entSql.Selector) *entSql.Predicate { return fn(s.C(path)) }
	}

	switch op {
	case pagination.OperatorEQ:
		return simple(func(col string) *entSql.Predicate { return entSql.EQ(col, v) }), nil
	case pagination.OperatorNEQ:
		return simple(func(col string) *entSql.Predicate { return entSql.NEQ(col, v) }), nil
	case pagination.OperatorGT:
		return simple(func(col string) *entSql.Predicate { return entSql.GT(col, v) }), nil
	case pagination.OperatorGTE:
		return simple(func(col string) *entSql.Predicate { return entSql.GTE(col, v) }), nil
	case pagination.OperatorLT:
		return simple(func(col string) *entSql.Predicate { return entSql.LT(col, v) }), nil
	case pagination.OperatorLTE:
		return simple(func(col string) *entSql.Predicate { return entSql.LTE(col, v) }), nil

	case pagination.OperatorIn:
		vals := argValues(c.Values())
		return simple(func(col string) *entSql.Predicate { return entSql.In(col, vals...) }), nil
	case pagination.OperatorNIn:
		vals := argValues(c.Values())
		return simple(func(col string) *entSql.Predicate { return entSql.NotIn(col, vals...) }), nil

	case pagination.OperatorLike:
		pattern := pagination.AnyToString(v)
		return simple(func(col string) *entSql.Predicate { return entSql.Like(col, pattern) }), nil
	case pagination.OperatorNotLike:
		pattern := pagination.AnyToString(v)
		return simple(func(col string) *entSql.Predicate { return entSql.Not(entSql.Like(col, pattern)) }), nil

	case pagination.OperatorContains, pagination.OperatorStartsWith, pagination.OperatorEndsWith:
		pattern := predicate.LikePattern(op, pagination.AnyToString(v))
		return simple(func(col string) *entSql.Predicate { return likePredicate(col, pattern, false, false) }), nil
	case pagination.OperatorNotContains:
		pattern := predicate.LikePattern(op, pagination.AnyToString(v))
		return simple(func(col string) *entSql.Predicate { return likePredicate(col, pattern, false, true) }), nil
	case pagination.OperatorIContains:
		pattern := predicate.LikePattern(op, pagination.AnyToString(v))
		return simple(func(col string) *entSql.Predicate { return likePredicate(col, pattern, true, false) }), nil

	case pagination.OperatorIsNull:
		return simple(entSql.IsNull), nil
	case pagination.OperatorIsNotNull:
		return simple(entSql.NotNull), nil

	case pagination.OperatorBetween:
		vals := c.Values()
		if len(vals) != 2 {
			return nil, fmt.Errorf("between on %q requires 2 values, got %d", path, len(vals))
		}
		lo, hi := argValue(vals[0]), argValue(vals[1])
		return simple(func(col string) *entSql.Predicate {
			return entSql.And(entSql.GTE(col, lo), entSql.LTE(col, hi))
		}), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op.String())
}
