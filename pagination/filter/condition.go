package filter

import (
	"fmt"
	"strings"

	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/pagination"
)

// Condition 一个已校验的过滤条件。
// 字段不导出，只能由 Binder 构造，保证 Path 一定来自字段目录。
type Condition struct {
	alias  string
	path   string
	op     pagination.Operator
	typ    catalog.ValueType
	values []any
}

// Alias 客户端使用的参数别名
func (c Condition) Alias() string { return c.alias }

// Path 后端字段路径
func (c Condition) Path() string { return c.path }

func (c Condition) Operator() pagination.Operator { return c.op }

func (c Condition) Type() catalog.ValueType { return c.typ }

// Values 返回已转换类型的取值副本
func (c Condition) Values() []any {
	return append([]any(nil), c.values...)
}

// Value 返回第一个取值，空条件返回 nil
func (c Condition) Value() any {
	if len(c.values) == 0 {
		return nil
	}
	return c.values[0]
}

func (c Condition) String() string {
	vals := make([]string, 0, len(c.values))
	for _, v := range c.values {
		vals = append(vals, pagination.AnyToString(v))
	}
	return fmt.Sprintf("%s %s [%s]", c.path, c.op, strings.Join(vals, ","))
}

// Spec 一次请求的过滤条件集合，条件之间为 AND 关系
type Spec struct {
	entity     string
	conditions []Condition
}

func (s *Spec) Entity() string {
	if s == nil {
		return ""
	}
	return s.entity
}

// Conditions 按绑定顺序返回条件副本
func (s *Spec) Conditions() []Condition {
	if s == nil {
		return nil
	}
	return append([]Condition(nil), s.conditions...)
}

func (s *Spec) Len() int {
	if s == nil {
		return 0
	}
	return len(s.conditions)
}

func (s *Spec) IsEmpty() bool { return s.Len() == 0 }

// CountOf 统计某个别名的条件数量
func (s *Spec) CountOf(alias string) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, c := range s.conditions {
		if c.alias == alias {
			n++
		}
	}
	return n
}
