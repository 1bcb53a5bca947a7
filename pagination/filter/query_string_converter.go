package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tx7do/go-crud-guard/pagination"
)

const (
	QueryDelimiter = "__" // 分隔符
	QueryAnd       = "$and"
	QueryOr        = "$or"
)

type QueryMap map[string]any
type QueryMapArray []QueryMap

// QueryStringConverter 将 JSON 格式的 query 参数展开为普通参数
type QueryStringConverter struct{}

func NewQueryStringConverter() *QueryStringConverter {
	return &QueryStringConverter{}
}

// decode 数字保留为 json.Number，避免大整数丢失精度
func (qsc *QueryStringConverter) decode(data string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}

// QueryStringToMap 将查询字符串转换为 map，支持对象与对象数组
func (qsc *QueryStringConverter) QueryStringToMap(queryString string) (QueryMapArray, error) {
	if queryString == "" {
		return nil, nil
	}

	var obj QueryMap
	errObj := qsc.decode(queryString, &obj)
	if errObj == nil {
		return QueryMapArray{obj}, nil
	}

	var arr QueryMapArray
	errArr := qsc.decode(queryString, &arr)
	if errArr == nil {
		return arr, nil
	}

	return nil, fmt.Errorf("parse as object failed: %v; parse as array failed: %v", errObj, errArr)
}

// Convert 将 query 字符串展开为参数。
// 数组形式等价于 AND；$or 不受支持，因为过滤条件之间只有 AND 关系。
func (qsc *QueryStringConverter) Convert(queryString string) (Params, error) {
	maps, err := qsc.QueryStringToMap(queryString)
	if err != nil {
		return nil, err
	}

	out := Params{}
	for _, m := range maps {
		if err = qsc.collect(out, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (qsc *QueryStringConverter) collect(out Params, m QueryMap) error {
	for k, v := range m {
		switch {
		case k == QueryOr:
			return errors.New("$or is not supported")

		case k == QueryAnd:
			list, ok := v.([]any)
			if !ok {
				return errors.New("$and must be an array")
			}
			for _, item := range list {
				sub, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("unsupported $and item type: %T", item)
				}
				if err := qsc.collect(out, sub); err != nil {
					return err
				}
			}

		case strings.HasPrefix(k, "$"):
			return fmt.Errorf("unsupported logical key %q", k)

		default:
			values, err := qsc.valueStrings(v)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			out.Add(k, values...)
		}
	}
	return nil
}

func (qsc *QueryStringConverter) valueStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if _, nested := item.([]any); nested {
				return nil, errors.New("nested arrays are not supported")
			}
			if _, nested := item.(map[string]any); nested {
				return nil, errors.New("objects are not supported as values")
			}
			out = append(out, pagination.AnyToString(item))
		}
		return out, nil
	case map[string]any:
		return nil, errors.New("objects are not supported as values")
	default:
		return []string{pagination.AnyToString(t)}, nil
	}
}
