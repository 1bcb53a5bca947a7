package filter

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/pagination"
)

var errEmptyValue = errors.New("empty value")

// coerce 将原始字符串转换为字段声明的类型
func coerce(typ catalog.ValueType, raw string) (any, error) {
	if typ == catalog.TypeString {
		return raw, nil
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errEmptyValue
	}

	switch typ {
	case catalog.TypeInt:
		return pagination.ParseInt(raw, 64)
	case catalog.TypeUint:
		if strings.HasPrefix(raw, "-") {
			return nil, errors.New("negative value for unsigned field")
		}
		return pagination.ParseUint(raw, 64)
	case catalog.TypeFloat:
		return pagination.ParseFloat(raw)
	case catalog.TypeBool:
		return cast.ToBoolE(raw)
	case catalog.TypeTime:
		return parseTime(raw)
	case catalog.TypeUUID:
		return uuid.Parse(raw)
	case catalog.TypeDecimal:
		return decimal.NewFromString(raw)
	default:
		return nil, errors.New("unsupported value type")
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return cast.ToTimeInDefaultLocationE(raw, time.UTC)
}
