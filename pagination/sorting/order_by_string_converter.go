package sorting

import (
	"strings"

	"github.com/go-kratos/kratos/v2/encoding"
	_ "github.com/go-kratos/kratos/v2/encoding/json"
	"go.einride.tech/aip/ordering"
)

// Term 解析出的原始排序项，尚未校验
type Term struct {
	Field     string
	Direction string
}

// OrderByStringConverter 解析排序字符串，支持：
//   - 逗号列表：-created_at,name 或 name:desc,id:asc
//   - JSON 数组：["-created_at","name"]
//   - AIP-132：created_at desc, name
type OrderByStringConverter struct {
	codec encoding.Codec
}

func NewOrderByStringConverter() *OrderByStringConverter {
	return &OrderByStringConverter{
		codec: encoding.GetCodec("json"),
	}
}

// Convert 将排序字符串转换为排序项列表
func (obc OrderByStringConverter) Convert(orderBy string) ([]Term, error) {
	orderBy = strings.TrimSpace(orderBy)
	if len(orderBy) == 0 {
		return nil, nil
	}

	if strings.HasPrefix(orderBy, "[") && strings.HasSuffix(orderBy, "]") {
		return obc.ParseJsonString(orderBy)
	}

	if strings.ContainsAny(orderBy, " \t") {
		return obc.ParseAIPString(orderBy)
	}

	return obc.ParseListString(orderBy), nil
}

// ParseJsonString 解析 JSON 数组格式
func (obc OrderByStringConverter) ParseJsonString(orderByJson string) ([]Term, error) {
	var items []string
	if err := obc.codec.Unmarshal([]byte(orderByJson), &items); err != nil {
		return nil, err
	}

	var terms []Term
	for _, item := range items {
		if t, ok := parseToken(item); ok {
			terms = append(terms, t)
		}
	}
	return terms, nil
}

// ParseListString 解析逗号分隔的列表
func (obc OrderByStringConverter) ParseListString(orderBy string) []Term {
	var terms []Term
	for _, item := range strings.Split(orderBy, ",") {
		if t, ok := parseToken(item); ok {
			terms = append(terms, t)
		}
	}
	return terms
}

// ParseAIPString 解析 AIP 格式的排序字符串，方向关键字大小写不敏感
func (obc OrderByStringConverter) ParseAIPString(orderByString string) ([]Term, error) {
	parts := strings.Split(orderByString, ",")
	for i, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 2 {
			fields[1] = strings.ToLower(fields[1])
		}
		parts[i] = strings.Join(fields, " ")
	}

	var actual ordering.OrderBy
	if err := actual.UnmarshalString(strings.Join(parts, ",")); err != nil {
		return nil, err
	}

	terms := make([]Term, 0, len(actual.Fields))
	for _, item := range actual.Fields {
		dir := string(DirectionAsc)
		if item.Desc {
			dir = string(DirectionDesc)
		}
		terms = append(terms, Term{Field: item.Path, Direction: dir})
	}
	return terms, nil
}

// parseToken 解析单个排序项：-field、+field、field:desc
func parseToken(item string) (Term, bool) {
	item = strings.TrimSpace(item)
	if item == "" {
		return Term{}, false
	}

	switch {
	case strings.HasPrefix(item, "-"):
		return Term{Field: strings.TrimSpace(item[1:]), Direction: string(DirectionDesc)}, true
	case strings.HasPrefix(item, "+"):
		return Term{Field: strings.TrimSpace(item[1:]), Direction: string(DirectionAsc)}, true
	}

	if idx := strings.LastIndex(item, ":"); idx >= 0 {
		return Term{Field: strings.TrimSpace(item[:idx]), Direction: strings.TrimSpace(item[idx+1:])}, true
	}

	if fields := strings.Fields(item); len(fields) == 2 {
		return Term{Field: fields[0], Direction: fields[1]}, true
	}

	return Term{Field: item}, true
}
