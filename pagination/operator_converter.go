package pagination

import (
	"strings"

	"github.com/tx7do/go-utils/stringcase"
)

var operatorMap = map[string]Operator{
	"eq":     OperatorEQ,
	"equal":  OperatorEQ,
	"equals": OperatorEQ,
	"exact":  OperatorEQ,

	"ne":         OperatorNEQ,
	"neq":        OperatorNEQ,
	"not":        OperatorNEQ,
	"not_equal":  OperatorNEQ,
	"not_equals": OperatorNEQ,
	"not-equal":  OperatorNEQ,

	"gt":           OperatorGT,
	"greater":      OperatorGT,
	"greater_than": OperatorGT,
	"greater-than": OperatorGT,

	"gte":                   OperatorGTE,
	"greater_than_or_equal": OperatorGTE,
	"greater_equals":        OperatorGTE,
	"greater_or_equal":      OperatorGTE,
	"greater-or-equal":      OperatorGTE,

	"lt":        OperatorLT,
	"less":      OperatorLT,
	"less_than": OperatorLT,
	"less-than": OperatorLT,

	"lte":                OperatorLTE,
	"less_than_or_equal": OperatorLTE,
	"less_equals":        OperatorLTE,
	"less_or_equal":      OperatorLTE,
	"less-or-equal":      OperatorLTE,

	"like": OperatorLike,

	"not_like": OperatorNotLike,
	"notlike":  OperatorNotLike,

	"contains": OperatorContains,

	"not_contains": OperatorNotContains,
	"notcontains":  OperatorNotContains,

	"icontains":  OperatorIContains,
	"i_contains": OperatorIContains,

	"starts_with": OperatorStartsWith,
	"startswith":  OperatorStartsWith,

	"ends_with": OperatorEndsWith,
	"endswith":  OperatorEndsWith,

	"in": OperatorIn,

	"nin":    OperatorNIn,
	"not_in": OperatorNIn,
	"notin":  OperatorNIn,

	"is_null": OperatorIsNull,
	"isnull":  OperatorIsNull,

	"is_not_null": OperatorIsNotNull,
	"isnot_null":  OperatorIsNotNull,
	"isnotnull":   OperatorIsNotNull,
	"not_isnull":  OperatorIsNotNull,

	"between": OperatorBetween,
	"range":   OperatorBetween,
}

// ConverterStringToOperator 将字符串转换为 Operator 枚举值
func ConverterStringToOperator(str string) Operator {
	key := strings.ToLower(stringcase.ToSnakeCase(str))
	if v, ok := operatorMap[key]; ok {
		return v
	}
	return OperatorUnspecified
}

// IsValidOperatorString 检查字符串是否为有效的 Operator 枚举值
func IsValidOperatorString(str string) bool {
	op := ConverterStringToOperator(str)
	return op != OperatorUnspecified
}
