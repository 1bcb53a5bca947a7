package predicate

import (
	"strings"

	"github.com/tx7do/go-crud-guard/pagination"
)

// LikeEscapeChar SQL LIKE 使用的转义字符
const LikeEscapeChar = '!'

var likeEscaper = strings.NewReplacer(
	string(LikeEscapeChar), string(LikeEscapeChar)+string(LikeEscapeChar),
	"%", string(LikeEscapeChar)+"%",
	"_", string(LikeEscapeChar)+"_",
)

// EscapeLike 转义 LIKE 通配符，使取值按字面量匹配
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// LikePattern 为子串类操作符生成 LIKE 模式；LIKE/NOT_LIKE 原样透传客户端模式
func LikePattern(op pagination.Operator, value string) string {
	switch op {
	case pagination.OperatorContains, pagination.OperatorNotContains, pagination.OperatorIContains:
		return "%" + EscapeLike(value) + "%"
	case pagination.OperatorStartsWith:
		return EscapeLike(value) + "%"
	case pagination.OperatorEndsWith:
		return "%" + EscapeLike(value)
	default:
		return value
	}
}

// NeedsEscape 模式是否使用了转义字符
func NeedsEscape(op pagination.Operator) bool {
	switch op {
	case pagination.OperatorContains, pagination.OperatorNotContains, pagination.OperatorIContains,
		pagination.OperatorStartsWith, pagination.OperatorEndsWith:
		return true
	default:
		return false
	}
}
