package pagination

// Operator 过滤操作符（封闭集合）
type Operator int32

const (
	OperatorUnspecified Operator = iota

	OperatorEQ  // 等于
	OperatorNEQ // 不等于

	OperatorGT  // 大于
	OperatorGTE // 大于等于
	OperatorLT  // 小于
	OperatorLTE // 小于等于

	OperatorLike        // LIKE 模式匹配
	OperatorNotLike     // NOT LIKE
	OperatorContains    // 包含子串
	OperatorNotContains // 不包含子串
	OperatorIContains   // 包含子串（忽略大小写）
	OperatorStartsWith  // 前缀匹配
	OperatorEndsWith    // 后缀匹配

	OperatorIn  // 在集合中
	OperatorNIn // 不在集合中

	OperatorIsNull    // 为空
	OperatorIsNotNull // 不为空

	OperatorBetween // 区间（闭区间）
)

var operatorNames = map[Operator]string{
	OperatorUnspecified: "OPERATOR_UNSPECIFIED",
	OperatorEQ:          "EQ",
	OperatorNEQ:         "NEQ",
	OperatorGT:          "GT",
	OperatorGTE:         "GTE",
	OperatorLT:          "LT",
	OperatorLTE:         "LTE",
	OperatorLike:        "LIKE",
	OperatorNotLike:     "NOT_LIKE",
	OperatorContains:    "CONTAINS",
	OperatorNotContains: "NOT_CONTAINS",
	OperatorIContains:   "ICONTAINS",
	OperatorStartsWith:  "STARTS_WITH",
	OperatorEndsWith:    "ENDS_WITH",
	OperatorIn:          "IN",
	OperatorNIn:         "NIN",
	OperatorIsNull:      "IS_NULL",
	OperatorIsNotNull:   "IS_NOT_NULL",
	OperatorBetween:     "BETWEEN",
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return "OPERATOR_UNSPECIFIED"
}

// IsValid 是否为已定义的操作符
func (o Operator) IsValid() bool {
	return o > OperatorUnspecified && o <= OperatorBetween
}

// IsStringOperator 是否为仅适用于字符串字段的操作符
func (o Operator) IsStringOperator() bool {
	switch o {
	case OperatorLike, OperatorNotLike,
		OperatorContains, OperatorNotContains, OperatorIContains,
		OperatorStartsWith, OperatorEndsWith:
		return true
	default:
		return false
	}
}

// IsMultiValue 一个条件是否携带多个值
func (o Operator) IsMultiValue() bool {
	return o == OperatorIn || o == OperatorNIn || o == OperatorBetween
}

// IsNullCheck 是否为空值判断，不需要值
func (o Operator) IsNullCheck() bool {
	return o == OperatorIsNull || o == OperatorIsNotNull
}

// Negate 返回空值判断的反向操作符，其余操作符原样返回
func (o Operator) Negate() Operator {
	switch o {
	case OperatorIsNull:
		return OperatorIsNotNull
	case OperatorIsNotNull:
		return OperatorIsNull
	default:
		return o
	}
}

// AllOperators 返回全部已定义的操作符
func AllOperators() []Operator {
	ops := make([]Operator, 0, int(OperatorBetween))
	for o := OperatorEQ; o <= OperatorBetween; o++ {
		ops = append(ops, o)
	}
	return ops
}
