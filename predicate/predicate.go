package predicate

import (
	"strings"

	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/pagination/filter"
	"github.com/tx7do/go-crud-guard/pagination/sorting"
)

// Expr 后端无关的谓词树。nil 表示匹配全部。
type Expr interface {
	isExpr()
	String() string
}

// Cond 单个比较条件，只能由 Compile 构造
type Cond struct {
	path   string
	op     pagination.Operator
	values []any
}

func (Cond) isExpr() {}

func (c Cond) Path() string { return c.path }

// Segments 按点分隔的路径片段
func (c Cond) Segments() []string { return strings.Split(c.path, ".") }

func (c Cond) Operator() pagination.Operator { return c.op }

func (c Cond) Values() []any { return append([]any(nil), c.values...) }

func (c Cond) Value() any {
	if len(c.values) == 0 {
		return nil
	}
	return c.values[0]
}

func (c Cond) String() string {
	vals := make([]string, 0, len(c.values))
	for _, v := range c.values {
		vals = append(vals, pagination.AnyToString(v))
	}
	if len(vals) == 0 {
		return c.path + " " + c.op.String()
	}
	return c.path + " " + c.op.String() + " " + strings.Join(vals, ",")
}

// And 条件的逻辑与，保持条件顺序
type And struct {
	exprs []Expr
}

func (And) isExpr() {}

func (a And) Exprs() []Expr { return append([]Expr(nil), a.exprs...) }

func (a And) String() string {
	parts := make([]string, 0, len(a.exprs))
	for _, e := range a.exprs {
		parts = append(parts, "("+e.String()+")")
	}
	return strings.Join(parts, " AND ")
}

// Order 后端无关的排序项
type Order struct {
	Path string
	Desc bool
}

// Segments 按点分隔的路径片段
func (o Order) Segments() []string { return strings.Split(o.Path, ".") }

func (o Order) String() string {
	if o.Desc {
		return o.Path + " desc"
	}
	return o.Path + " asc"
}

// Compile 将过滤条件编译为谓词树。
// 空条件返回 nil；单个条件直接返回 Cond；多个条件按顺序组合为 And。
func Compile(spec *filter.Spec) Expr {
	if spec.IsEmpty() {
		return nil
	}

	conds := spec.Conditions()
	exprs := make([]Expr, 0, len(conds))
	for _, c := range conds {
		exprs = append(exprs, Cond{
			path:   c.Path(),
			op:     c.Operator(),
			values: c.Values(),
		})
	}

	if len(exprs) == 1 {
		return exprs[0]
	}
	return And{exprs: exprs}
}

// CompileSort 将排序项编译为后端排序，保持顺序
func CompileSort(spec *sorting.Spec) []Order {
	units := spec.Units()
	if len(units) == 0 {
		return nil
	}

	orders := make([]Order, 0, len(units))
	for _, u := range units {
		path := u.Path()
		if path == "" {
			continue
		}
		orders = append(orders, Order{Path: path, Desc: u.Desc()})
	}
	return orders
}

// Walk 按顺序遍历谓词树中的所有 Cond
func Walk(e Expr, fn func(Cond) error) error {
	switch t := e.(type) {
	case nil:
		return nil
	case Cond:
		return fn(t)
	case And:
		for _, sub := range t.exprs {
			if err := Walk(sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Conds 展开谓词树为条件列表
func Conds(e Expr) []Cond {
	var out []Cond
	_ = Walk(e, func(c Cond) error {
		out = append(out, c)
		return nil
	})
	return out
}
