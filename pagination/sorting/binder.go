package sorting

import (
	"errors"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/errs"
)

// DefaultSortKeys 读取排序的参数名，按顺序合并
var DefaultSortKeys = []string{"sort", "order_by"}

// Binder 将排序参数绑定为已校验的排序项
type Binder struct {
	catalog   *catalog.Catalog
	maxFields int
	keys      []string
	defaults  []Unit
	converter *OrderByStringConverter
	log       *log.Helper
}

type Option func(*Binder)

// WithMaxFields 实体未声明上限时使用的排序项数量上限，0 表示不限制
func WithMaxFields(n int) Option {
	return func(b *Binder) { b.maxFields = n }
}

// WithKeys 替换读取排序的参数名
func WithKeys(keys ...string) Option {
	return func(b *Binder) { b.keys = append([]string(nil), keys...) }
}

// WithDefault 请求中没有排序参数时使用的默认排序
func WithDefault(units ...Unit) Option {
	return func(b *Binder) { b.defaults = append([]Unit(nil), units...) }
}

func WithLogger(logger log.Logger) Option {
	return func(b *Binder) {
		b.log = log.NewHelper(log.With(logger, "module", "sort-binder"))
	}
}

func NewBinder(c *catalog.Catalog, opts ...Option) *Binder {
	b := &Binder{
		catalog:   c,
		keys:      DefaultSortKeys,
		converter: NewOrderByStringConverter(),
		log:       log.NewHelper(log.With(log.DefaultLogger, "module", "sort-binder")),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Bind 绑定排序参数，任何一项非法都返回错误
func (b *Binder) Bind(entity string, params map[string][]string) (*Spec, error) {
	ent, ok := b.catalog.Entity(entity)
	if !ok {
		return nil, errs.InvalidSortField(entity, "", "unknown entity")
	}

	var units []Unit
	for _, key := range b.keys {
		for _, raw := range params[key] {
			terms, err := b.converter.Convert(raw)
			if err != nil {
				b.log.Debugf("invalid sort parameter for %s: %s", entity, err.Error())
				return nil, errs.InvalidSortField(entity, raw, err.Error())
			}
			for _, t := range terms {
				u, err := NewUnit(t.Field, t.Direction)
				if err != nil {
					return nil, withEntity(err, entity)
				}
				units = append(units, u)
			}
		}
	}

	if len(units) == 0 {
		units = append(units, b.defaults...)
	}

	spec := &Spec{
		entity: entity,
		units:  make([]Unit, 0, len(units)),
	}
	seen := make(map[string]struct{}, len(units))

	for _, u := range units {
		mapping, err := b.catalog.ResolveSortable(entity, u.Field)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[mapping.Path]; dup {
			return nil, errs.InvalidSortField(entity, u.Field, "duplicate sort field")
		}
		seen[mapping.Path] = struct{}{}

		u.path = mapping.Path
		spec.units = append(spec.units, u)
	}

	limit := ent.MaxSortFields
	if limit == 0 {
		limit = b.maxFields
	}
	if limit > 0 && len(spec.units) > limit {
		e := errs.ParamCountLimit(entity, "", limit)
		e.Operation = errs.OpBindSort
		return nil, e
	}

	return spec, nil
}

func withEntity(err error, entity string) error {
	var be *errs.BindError
	if errors.As(err, &be) {
		c := *be
		c.Entity = entity
		return &c
	}
	return err
}
