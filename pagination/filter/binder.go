package filter

import (
	"errors"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cast"

	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/errs"
	"github.com/tx7do/go-crud-guard/pagination"
)

const (
	QueryKey  = "query"  // JSON 格式的过滤参数
	FilterKey = "filter" // AIP-160 格式的过滤参数
)

// DefaultReservedKeys 过滤绑定时跳过的参数名
var DefaultReservedKeys = []string{"page", "page_size", "sort", "order_by", QueryKey, FilterKey}

// Binder 将原始请求参数绑定为已校验的过滤条件
type Binder struct {
	catalog       *catalog.Catalog
	maxParameters int
	reserved      map[string]struct{}

	queryConverter  *QueryStringConverter
	filterConverter *FilterStringConverter

	log *log.Helper
}

type Option func(*Binder)

// WithMaxParameters 实体未声明上限时使用的总条件数上限，0 表示不限制
func WithMaxParameters(n int) Option {
	return func(b *Binder) { b.maxParameters = n }
}

// WithReservedKeys 替换保留参数名
func WithReservedKeys(keys ...string) Option {
	return func(b *Binder) {
		b.reserved = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			b.reserved[k] = struct{}{}
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(b *Binder) {
		b.log = log.NewHelper(log.With(logger, "module", "filter-binder"))
	}
}

func NewBinder(c *catalog.Catalog, opts ...Option) *Binder {
	b := &Binder{
		catalog:         c,
		queryConverter:  NewQueryStringConverter(),
		filterConverter: NewFilterStringConverter(),
		log:             log.NewHelper(log.With(log.DefaultLogger, "module", "filter-binder")),
	}
	WithReservedKeys(DefaultReservedKeys...)(b)

	for _, o := range opts {
		o(b)
	}
	return b
}

// plan 一个参数名解析后的中间结果，值尚未做类型转换
type plan struct {
	key     string
	mapping catalog.FieldMapping
	op      pagination.Operator
	groups  [][]string
}

// Bind 绑定过滤参数。任何一个参数校验失败都会返回错误，不会返回部分结果。
func (b *Binder) Bind(entity string, params map[string][]string) (*Spec, error) {
	ent, ok := b.catalog.Entity(entity)
	if !ok {
		return nil, errs.UnknownEntity(entity)
	}

	merged, err := b.expand(entity, params)
	if err != nil {
		return nil, err
	}

	var (
		plans  []plan
		counts = map[string]int{}
		total  int
	)

	for _, key := range merged.SortedKeys() {
		p, err := b.planKey(entity, key, merged[key])
		if err != nil {
			return nil, err
		}

		counts[p.mapping.Alias] += len(p.groups)
		if limit := p.mapping.MaxOccurrences; limit > 0 && counts[p.mapping.Alias] > limit {
			return nil, errs.ParamCountLimit(entity, p.mapping.Alias, limit)
		}

		total += len(p.groups)
		plans = append(plans, p)
	}

	limit := ent.MaxParameters
	if limit == 0 {
		limit = b.maxParameters
	}
	if limit > 0 && total > limit {
		return nil, errs.ParamCountLimit(entity, "", limit)
	}

	spec := &Spec{
		entity:     entity,
		conditions: make([]Condition, 0, total),
	}
	for _, p := range plans {
		for _, group := range p.groups {
			cond, err := b.coerceGroup(entity, p, group)
			if err != nil {
				return nil, err
			}
			spec.conditions = append(spec.conditions, cond)
		}
	}

	return spec, nil
}

// expand 去掉保留参数，并展开 query / filter 参数
func (b *Binder) expand(entity string, params map[string][]string) (Params, error) {
	out := Params{}
	for k, v := range params {
		if _, reserved := b.reserved[k]; reserved {
			continue
		}
		out.Add(k, v...)
	}

	if _, reserved := b.reserved[QueryKey]; reserved {
		for _, q := range params[QueryKey] {
			extra, err := b.queryConverter.Convert(q)
			if err != nil {
				b.log.Debugf("invalid query parameter for %s: %s", entity, err.Error())
				return nil, errs.InvalidParameter(entity, QueryKey, err.Error())
			}
			out.Merge(extra)
		}
	}

	if _, reserved := b.reserved[FilterKey]; reserved {
		for _, f := range params[FilterKey] {
			extra, err := b.filterConverter.Convert(f)
			if err != nil {
				b.log.Debugf("invalid filter parameter for %s: %s", entity, err.Error())
				return nil, errs.InvalidParameter(entity, FilterKey, err.Error())
			}
			out.Merge(extra)
		}
	}

	return out, nil
}

// splitKey 按最后一个分隔符拆分别名与操作符
func splitKey(key string) (alias, op string, hasOp bool) {
	idx := strings.LastIndex(key, QueryDelimiter)
	if idx < 0 {
		return key, "", false
	}
	return key[:idx], key[idx+len(QueryDelimiter):], true
}

func (b *Binder) planKey(entity, key string, values []string) (plan, error) {
	alias, opStr, hasOp := splitKey(key)
	if alias == "" {
		return plan{}, errs.UnknownField(entity, key)
	}

	// 先解析别名，再解析操作符后缀
	mapping, err := b.catalog.Resolve(entity, alias)
	if err != nil {
		return plan{}, errs.UnknownField(entity, key)
	}

	op := pagination.OperatorEQ
	if hasOp {
		if opStr == "" {
			return plan{}, errs.InvalidParameter(entity, key, "missing operator")
		}
		op = pagination.ConverterStringToOperator(opStr)
		if op == pagination.OperatorUnspecified {
			return plan{}, errs.InvalidParameter(entity, key, "unknown operator")
		}
	}

	if !mapping.Allows(op) {
		return plan{}, errs.OperationNotAllowed(entity, key, op.String())
	}

	p := plan{key: key, mapping: mapping, op: op}

	switch {
	case op == pagination.OperatorIn || op == pagination.OperatorNIn:
		vals := pagination.SplitValues(values...)
		if len(vals) == 0 {
			return plan{}, errs.InvalidParameter(entity, key, "empty value list")
		}
		p.groups = [][]string{vals}

	case op == pagination.OperatorBetween:
		vals := pagination.SplitValues(values...)
		if len(vals) != 2 {
			return plan{}, errs.InvalidParameter(entity, key, "between requires exactly two values")
		}
		p.groups = [][]string{vals}

	case op.IsNullCheck():
		flag := ""
		if len(values) > 0 {
			flag = values[len(values)-1]
		}
		p.groups = [][]string{{flag}}

	default:
		if len(values) == 0 {
			return plan{}, errs.InvalidParameter(entity, key, "missing value")
		}
		for _, v := range values {
			p.groups = append(p.groups, []string{v})
		}
	}

	return p, nil
}

func (b *Binder) coerceGroup(entity string, p plan, group []string) (Condition, error) {
	cond := Condition{
		alias: p.mapping.Alias,
		path:  p.mapping.Path,
		op:    p.op,
		typ:   p.mapping.Type,
	}

	if p.op.IsNullCheck() {
		flag := strings.TrimSpace(group[0])
		if flag != "" {
			on, err := cast.ToBoolE(flag)
			if err != nil {
				return Condition{}, errs.TypeCoercion(entity, p.key, p.op.String(), err)
			}
			if !on {
				cond.op = p.op.Negate()
			}
		}
		return cond, nil
	}

	cond.values = make([]any, 0, len(group))
	for _, raw := range group {
		v, err := coerce(p.mapping.Type, raw)
		if err != nil {
			return Condition{}, errs.TypeCoercion(entity, p.key, p.op.String(), err)
		}
		cond.values = append(cond.values, v)
	}

	if p.op == pagination.OperatorBetween {
		if err := checkRange(cond.values); err != nil {
			return Condition{}, errs.TypeCoercion(entity, p.key, p.op.String(), err)
		}
	}

	return cond, nil
}

var errEmptyRange = errors.New("lower bound is greater than upper bound")

// checkRange 对可比较的数值类型检查区间上下界
func checkRange(values []any) error {
	if len(values) != 2 {
		return nil
	}
	switch lo := values[0].(type) {
	case int64:
		if hi, ok := values[1].(int64); ok && lo > hi {
			return errEmptyRange
		}
	case uint64:
		if hi, ok := values[1].(uint64); ok && lo > hi {
			return errEmptyRange
		}
	case float64:
		if hi, ok := values[1].(float64); ok && lo > hi {
			return errEmptyRange
		}
	}
	return nil
}
