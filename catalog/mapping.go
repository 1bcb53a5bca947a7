package catalog

import (
	"strings"

	"github.com/tx7do/go-crud-guard/pagination"
)

// ValueType 字段声明的取值类型
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeUint
	TypeFloat
	TypeBool
	TypeTime
	TypeUUID
	TypeDecimal
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeUUID:
		return "uuid"
	case TypeDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// FieldMapping 客户端参数别名到后端字段路径的映射
type FieldMapping struct {
	Alias          string                // 客户端使用的参数名
	Path           string                // 后端字段路径，支持点分隔，如 orders.name
	Type           ValueType             // 取值类型
	Operators      []pagination.Operator // 允许的操作符
	MaxOccurrences int                   // 单次请求中最多出现的条件数，0 表示不限制
	Sortable       bool                  // 是否允许排序
}

// Allows 判断是否允许该操作符
func (m FieldMapping) Allows(op pagination.Operator) bool {
	for _, o := range m.Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Segments 返回按点分隔的路径片段
func (m FieldMapping) Segments() []string {
	return strings.Split(m.Path, ".")
}

func (m FieldMapping) clone() FieldMapping {
	c := m
	c.Operators = append([]pagination.Operator(nil), m.Operators...)
	return c
}

// Entity 某一实体类型的全部可过滤/可排序字段
type Entity struct {
	Name          string
	Fields        []FieldMapping
	MaxParameters int // 单次请求过滤条件总数上限，0 表示使用绑定器的默认值
	MaxSortFields int // 排序字段数量上限，0 表示使用绑定器的默认值
}

func (e Entity) clone() Entity {
	c := e
	c.Fields = make([]FieldMapping, len(e.Fields))
	for i, f := range e.Fields {
		c.Fields[i] = f.clone()
	}
	return c
}

// Field 构造字段映射的便捷函数
func Field(alias, path string, typ ValueType, ops ...pagination.Operator) FieldMapping {
	return FieldMapping{
		Alias:     alias,
		Path:      path,
		Type:      typ,
		Operators: ops,
	}
}

// WithMax 设置单字段出现次数上限
func (m FieldMapping) WithMax(n int) FieldMapping {
	m.MaxOccurrences = n
	return m
}

// AsSortable 标记为可排序
func (m FieldMapping) AsSortable() FieldMapping {
	m.Sortable = true
	return m
}
