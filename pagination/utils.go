package pagination

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnyToString 将任意值转换为字符串（nil 安全）
func AnyToString(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case []byte:
		return string(t)
	case float64:
		// 避免输出科学计数法
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		// 对于数字、bool 等使用 fmt.Sprintf 回退
		return fmt.Sprintf("%v", t)
	}
}

// SplitValues 按逗号分割取值，去掉空白与空项
func SplitValues(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

var errNotDecimal = errors.New("value is not a finite decimal number")

// ParseInt 按十进制解析整数，前导零不视为八进制，也不接受 0x/0o/0b 前缀
func ParseInt(s string, bitSize int) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, bitSize)
}

// ParseUint 按十进制解析无符号整数
func ParseUint(s string, bitSize int) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	return strconv.ParseUint(s, 10, bitSize)
}

// ParseFloat 解析十进制浮点数，拒绝十六进制写法、NaN 与 Inf
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xXpP_") {
		return 0, errNotDecimal
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotDecimal
	}
	return f, nil
}
