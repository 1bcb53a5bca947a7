package crud

import (
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/tx7do/go-crud-guard/batch"
	"github.com/tx7do/go-crud-guard/config"
	"github.com/tx7do/go-crud-guard/pagination/filter"
	"github.com/tx7do/go-crud-guard/pagination/sorting"
)

type options struct {
	logger log.Logger
	config *config.Config
	tracer trace.Tracer

	filterOpts []filter.Option
	sortOpts   []sorting.Option
	batchOpts  []batch.Option
}

type Option func(*options)

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig 使用配置中的过滤、排序、分页与批量参数
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithFilterOptions 追加过滤绑定参数，优先于配置
func WithFilterOptions(opts ...filter.Option) Option {
	return func(o *options) { o.filterOpts = append(o.filterOpts, opts...) }
}

// WithSortOptions 追加排序绑定参数，优先于配置
func WithSortOptions(opts ...sorting.Option) Option {
	return func(o *options) { o.sortOpts = append(o.sortOpts, opts...) }
}

// WithBatchOptions 追加批量执行参数，优先于配置
func WithBatchOptions(opts ...batch.Option) Option {
	return func(o *options) { o.batchOpts = append(o.batchOpts, opts...) }
}
