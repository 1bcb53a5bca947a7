package crud

import (
	"context"
	"fmt"
	"strconv"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tx7do/go-crud-guard/batch"
	"github.com/tx7do/go-crud-guard/catalog"
	"github.com/tx7do/go-crud-guard/config"
	"github.com/tx7do/go-crud-guard/errs"
	"github.com/tx7do/go-crud-guard/pagination"
	"github.com/tx7do/go-crud-guard/pagination/filter"
	"github.com/tx7do/go-crud-guard/pagination/sorting"
	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/store"
)

const (
	PageKey     = "page"
	PageSizeKey = "page_size"
)

// Repository 面向服务层的入口：绑定客户端参数、分页查询与批量写入
type Repository[T any, ID comparable] struct {
	entity string

	filters  *filter.Binder
	sorts    *sorting.Binder
	store    store.Store[T, ID]
	executor *batch.Executor[T, ID]
	reporter *errs.Reporter

	paging config.PagingConfig

	log    *log.Helper
	tracer trace.Tracer
}

func NewRepository[T any, ID comparable](entity string, c *catalog.Catalog, s store.Store[T, ID], opts ...Option) (*Repository[T, ID], error) {
	if c == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if _, ok := c.Entity(entity); !ok {
		return nil, errs.UnknownEntity(entity)
	}

	o := options{
		logger: log.DefaultLogger,
		config: config.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("go-crud-guard/crud")
	}
	cfg := o.config

	filterOpts := append([]filter.Option{
		filter.WithMaxParameters(cfg.Filter.MaxParameters),
		filter.WithLogger(o.logger),
	}, o.filterOpts...)
	if len(cfg.Filter.ReservedKeys) > 0 {
		filterOpts = append([]filter.Option{filter.WithReservedKeys(cfg.Filter.ReservedKeys...)}, filterOpts...)
	}

	sortOpts := append([]sorting.Option{
		sorting.WithMaxFields(cfg.Sort.MaxFields),
		sorting.WithLogger(o.logger),
	}, o.sortOpts...)

	batchOpts := append([]batch.Option{
		batch.WithConfig(cfg.Batch),
		batch.WithLogger(o.logger),
	}, o.batchOpts...)

	return &Repository[T, ID]{
		entity:   entity,
		filters:  filter.NewBinder(c, filterOpts...),
		sorts:    sorting.NewBinder(c, sortOpts...),
		store:    s,
		executor: batch.NewExecutor[T, ID](entity, s, batchOpts...),
		reporter: errs.NewReporter(o.logger),
		paging:   cfg.Paging,
		log:      log.NewHelper(log.With(o.logger, "module", "crud-repository", "entity", entity)),
		tracer:   o.tracer,
	}, nil
}

func (r *Repository[T, ID]) Entity() string { return r.entity }

// Bind 绑定过滤参数
func (r *Repository[T, ID]) Bind(params map[string][]string) (*filter.Spec, error) {
	return r.filters.Bind(r.entity, params)
}

// BindSort 绑定排序参数
func (r *Repository[T, ID]) BindSort(params map[string][]string) (*sorting.Spec, error) {
	return r.sorts.Bind(r.entity, params)
}

// Page 用同一谓词执行分页查询和计数。没有匹配记录时返回空列表，不视为错误；
// 后端错误不重试，包装为 QueryError 返回。
func (r *Repository[T, ID]) Page(ctx context.Context, fs *filter.Spec, ss *sorting.Spec, p pagination.Paging) (result *pagination.PagingResult[T], err error) {
	ctx, span := r.tracer.Start(ctx, "crud.page", trace.WithAttributes(
		attribute.String("crud.entity", r.entity),
		attribute.Int("crud.page", p.Page),
		attribute.Int("crud.page_size", p.PageSize),
		attribute.Int("crud.filter.conditions", fs.Len()),
		attribute.Int("crud.sort.fields", ss.Len()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err = p.Validate(r.paging.MaxPageSize); err != nil {
		return nil, errs.InvalidPaging(r.entity, err)
	}
	if err = r.checkEntity(fs.Entity(), ss.Entity()); err != nil {
		return nil, err
	}

	where := predicate.Compile(fs)
	orders := predicate.CompileSort(ss)

	total, err := r.store.Count(ctx, where)
	if err != nil {
		r.log.Errorf("count %s failed: %s", r.entity, err.Error())
		return nil, &errs.QueryError{Entity: r.entity, Cause: err}
	}

	result = pagination.EmptyPagingResult[T](p)
	result.Total = total
	if total == 0 || int64(p.Page)*int64(p.PageSize) >= total {
		return result, nil
	}

	items, err := r.store.Query(ctx, where, orders, p.Offset(), p.Limit())
	if err != nil {
		r.log.Errorf("query %s failed: %s", r.entity, err.Error())
		return nil, &errs.QueryError{Entity: r.entity, Cause: err}
	}
	if items != nil {
		result.Items = items
	}

	span.SetAttributes(attribute.Int64("crud.total", total))
	return result, nil
}

// List 从一份原始参数中同时绑定过滤、排序与分页，再执行 Page
func (r *Repository[T, ID]) List(ctx context.Context, params map[string][]string) (*pagination.PagingResult[T], error) {
	p, err := r.bindPaging(params)
	if err != nil {
		return nil, err
	}

	fs, err := r.Bind(params)
	if err != nil {
		return nil, err
	}
	ss, err := r.BindSort(params)
	if err != nil {
		return nil, err
	}

	return r.Page(ctx, fs, ss, p)
}

// BatchCreate 批量创建，立即返回待完成的句柄
func (r *Repository[T, ID]) BatchCreate(ctx context.Context, items []*T, atomic bool, chunkSize int) *batch.Future[[]batch.Result[T]] {
	return r.executor.Create(ctx, items, batch.Options{Atomic: atomic, ChunkSize: chunkSize})
}

// BatchDelete 批量删除，立即返回待完成的句柄
func (r *Repository[T, ID]) BatchDelete(ctx context.Context, ids []ID, atomic bool, chunkSize int) *batch.Future[[]batch.Result[ID]] {
	return r.executor.Delete(ctx, ids, batch.Options{Atomic: atomic, ChunkSize: chunkSize})
}

// Report 将错误转换为对外的结构化错误
func (r *Repository[T, ID]) Report(err error) *kerrors.Error {
	return r.reporter.Report(err)
}

func (r *Repository[T, ID]) bindPaging(params map[string][]string) (pagination.Paging, error) {
	p := pagination.Paging{Page: 0, PageSize: r.paging.DefaultPageSize}

	if v, ok := lastValue(params, PageKey); ok {
		n, err := pagination.ParseInt(v, strconv.IntSize)
		if err != nil {
			return p, errs.InvalidPaging(r.entity, fmt.Errorf("page: %w", err))
		}
		p.Page = int(n)
	}
	if v, ok := lastValue(params, PageSizeKey); ok {
		n, err := pagination.ParseInt(v, strconv.IntSize)
		if err != nil {
			return p, errs.InvalidPaging(r.entity, fmt.Errorf("page_size: %w", err))
		}
		p.PageSize = int(n)
	}
	return p, nil
}

func (r *Repository[T, ID]) checkEntity(names ...string) error {
	for _, n := range names {
		if n != "" && n != r.entity {
			return &errs.BindError{
				Kind:      errs.KindInvalidParameter,
				Entity:    r.entity,
				Operation: errs.OpPage,
				Detail:    fmt.Sprintf("spec bound for entity %q", n),
			}
		}
	}
	return nil
}

func lastValue(params map[string][]string, key string) (string, bool) {
	vs := params[key]
	if len(vs) == 0 || vs[len(vs)-1] == "" {
		return "", false
	}
	return vs[len(vs)-1], true
}
