package sorting

import (
	"regexp"
	"strings"

	"github.com/tx7do/go-crud-guard/errs"
)

// Direction 排序方向，统一为小写
type Direction string

const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

var fieldNameRegexp = regexp.MustCompile(`^[a-zA-Z.]+$`)

// ParseDirection 大小写不敏感地解析排序方向，空串视为升序
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return DirectionAsc, true
	case "desc":
		return DirectionDesc, true
	default:
		return "", false
	}
}

// Unit 一个排序项
type Unit struct {
	Field     string
	Direction Direction

	path string
}

// NewUnit 校验字段名与方向并构造排序项
func NewUnit(field, direction string) (Unit, error) {
	field = strings.TrimSpace(field)
	if !fieldNameRegexp.MatchString(field) {
		return Unit{}, errs.InvalidSortField("", field, "invalid field name")
	}

	dir, ok := ParseDirection(direction)
	if !ok {
		return Unit{}, errs.InvalidSortField("", field, "invalid direction")
	}

	return Unit{Field: field, Direction: dir}, nil
}

// MustNewUnit 用于构造默认排序
func MustNewUnit(field, direction string) Unit {
	u, err := NewUnit(field, direction)
	if err != nil {
		panic(err)
	}
	return u
}

// Path 后端字段路径，绑定前为空
func (u Unit) Path() string { return u.path }

func (u Unit) Desc() bool { return u.Direction == DirectionDesc }

func (u Unit) String() string {
	return u.Field + " " + string(u.Direction)
}

// Spec 有序的排序项集合
type Spec struct {
	entity string
	units  []Unit
}

func (s *Spec) Entity() string {
	if s == nil {
		return ""
	}
	return s.entity
}

// Units 按优先级返回排序项副本
func (s *Spec) Units() []Unit {
	if s == nil {
		return nil
	}
	return append([]Unit(nil), s.units...)
}

func (s *Spec) Len() int {
	if s == nil {
		return 0
	}
	return len(s.units)
}
