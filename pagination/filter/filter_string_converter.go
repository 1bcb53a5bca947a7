package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.einride.tech/aip/filtering"
	v1alpha1 "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/tx7do/go-crud-guard/pagination"
)

// FilterStringConverter 将 AIP-160 过滤表达式展开为 alias__op 形式的参数。
// 只支持由 AND 连接的比较，以及对单个比较取反。
type FilterStringConverter struct {
}

func NewFilterStringConverter() *FilterStringConverter {
	return &FilterStringConverter{}
}

func (fsc *FilterStringConverter) Convert(filterString string) (Params, error) {
	if len(strings.TrimSpace(filterString)) == 0 {
		return nil, nil
	}

	var parser filtering.Parser
	parser.Init(filterString)
	parsedExpr, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	out := Params{}
	if err = fsc.walk(out, parsedExpr.GetExpr(), false); err != nil {
		return nil, err
	}
	return out, nil
}

// mapOperator 映射 AIP 运算符
func (fsc *FilterStringConverter) mapOperator(op string) pagination.Operator {
	switch op {
	case "=":
		return pagination.OperatorEQ
	case "!=":
		return pagination.OperatorNEQ
	case "<":
		return pagination.OperatorLT
	case "<=":
		return pagination.OperatorLTE
	case ">":
		return pagination.OperatorGT
	case ">=":
		return pagination.OperatorGTE
	case "isnull":
		return pagination.OperatorIsNull
	case "isnotnull":
		return pagination.OperatorIsNotNull
	case "contains", ":":
		return pagination.OperatorContains
	case "startswith":
		return pagination.OperatorStartsWith
	case "endswith":
		return pagination.OperatorEndsWith
	case "in":
		return pagination.OperatorIn
	case "notin":
		return pagination.OperatorNIn
	default:
		return pagination.OperatorUnspecified
	}
}

// invertOperator 取反；没有对应否定形式的返回 OperatorUnspecified
func (fsc *FilterStringConverter) invertOperator(op pagination.Operator) pagination.Operator {
	switch op {
	case pagination.OperatorEQ:
		return pagination.OperatorNEQ
	case pagination.OperatorNEQ:
		return pagination.OperatorEQ
	case pagination.OperatorGT:
		return pagination.OperatorLTE
	case pagination.OperatorGTE:
		return pagination.OperatorLT
	case pagination.OperatorLT:
		return pagination.OperatorGTE
	case pagination.OperatorLTE:
		return pagination.OperatorGT
	case pagination.OperatorIn:
		return pagination.OperatorNIn
	case pagination.OperatorNIn:
		return pagination.OperatorIn
	case pagination.OperatorContains:
		return pagination.OperatorNotContains
	case pagination.OperatorNotContains:
		return pagination.OperatorContains
	case pagination.OperatorIsNull, pagination.OperatorIsNotNull:
		return op.Negate()
	default:
		return pagination.OperatorUnspecified
	}
}

// ConstantString 将 AIP Constant 转换为字符串表示
func ConstantString(c *v1alpha1.Constant) string {
	if c == nil {
		return ""
	}

	switch c.ConstantKind.(type) {
	case *v1alpha1.Constant_StringValue:
		return c.GetStringValue()
	case *v1alpha1.Constant_BoolValue:
		return strconv.FormatBool(c.GetBoolValue())
	case *v1alpha1.Constant_Int64Value:
		return strconv.FormatInt(c.GetInt64Value(), 10)
	case *v1alpha1.Constant_Uint64Value:
		return strconv.FormatUint(c.GetUint64Value(), 10)
	case *v1alpha1.Constant_DoubleValue:
		return strconv.FormatFloat(c.GetDoubleValue(), 'f', -1, 64)
	default:
		return ""
	}
}

// fieldName 提取标识符或点分隔的成员访问
func (fsc *FilterStringConverter) fieldName(e *v1alpha1.Expr) (string, bool) {
	switch kind := e.GetExprKind().(type) {
	case *v1alpha1.Expr_IdentExpr:
		return kind.IdentExpr.GetName(), true
	case *v1alpha1.Expr_SelectExpr:
		parent, ok := fsc.fieldName(kind.SelectExpr.GetOperand())
		if !ok {
			return "", false
		}
		return parent + "." + kind.SelectExpr.GetField(), true
	default:
		return "", false
	}
}

// constValue 取常量值；未加引号的文本（如 true、paid）按字面量处理
func (fsc *FilterStringConverter) constValue(e *v1alpha1.Expr) (string, bool) {
	switch kind := e.GetExprKind().(type) {
	case *v1alpha1.Expr_ConstExpr:
		return ConstantString(kind.ConstExpr), true
	case *v1alpha1.Expr_IdentExpr:
		return kind.IdentExpr.GetName(), true
	default:
		return "", false
	}
}

// walk 递归遍历 AIP Expr，negate 表示处于 NOT 之下
func (fsc *FilterStringConverter) walk(out Params, in *v1alpha1.Expr, negate bool) error {
	if in == nil {
		return nil
	}

	call, ok := in.GetExprKind().(*v1alpha1.Expr_CallExpr)
	if !ok {
		return errors.New("filter must be a comparison")
	}

	fn := strings.ToLower(call.CallExpr.GetFunction())
	args := call.CallExpr.GetArgs()

	switch fn {
	case "and":
		if negate {
			return errors.New("NOT over AND is not supported")
		}
		for _, arg := range args {
			if err := fsc.walk(out, arg, false); err != nil {
				return err
			}
		}
		return nil

	case "or", "fuzzy":
		return fmt.Errorf("%s is not supported", strings.ToUpper(fn))

	case "not", "-":
		if len(args) != 1 {
			return errors.New("NOT takes exactly one argument")
		}
		return fsc.walk(out, args[0], !negate)
	}

	op := fsc.mapOperator(fn)
	if op == pagination.OperatorUnspecified {
		return fmt.Errorf("unsupported function %q", call.CallExpr.GetFunction())
	}
	if negate {
		if op = fsc.invertOperator(op); op == pagination.OperatorUnspecified {
			return fmt.Errorf("cannot negate %q", call.CallExpr.GetFunction())
		}
	}

	if len(args) == 0 {
		return errors.New("comparison without field")
	}
	field, ok := fsc.fieldName(args[0])
	if !ok {
		return errors.New("first argument must be a field")
	}
	key := field + QueryDelimiter + strings.ToLower(op.String())

	if op.IsNullCheck() {
		out.Add(key, "")
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("missing value for %q", field)
	}
	for _, arg := range args[1:] {
		v, ok := fsc.constValue(arg)
		if !ok {
			return fmt.Errorf("value for %q must be a constant", field)
		}
		out.Add(key, v)
	}
	return nil
}
