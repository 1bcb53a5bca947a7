package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/tx7do/go-utils/id"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tx7do/go-crud-guard/audit"
	"github.com/tx7do/go-crud-guard/config"
	"github.com/tx7do/go-crud-guard/errs"
	"github.com/tx7do/go-crud-guard/store"
)

var errNilItem = errors.New("nil item")

type options struct {
	logger           log.Logger
	workers          int64
	chunkSize        int
	chunkConcurrency int
	auditor          audit.Auditor
	metrics          *Metrics
	tracer           trace.Tracer
}

type Option func(*options)

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithWorkers 同时执行的批量提交数量上限
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = int64(n)
		}
	}
}

// WithChunkSize 提交未指定分块大小时使用的默认值
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithChunkConcurrency 非原子模式下同时下发的分块数量上限，1 表示严格顺序执行
func WithChunkConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkConcurrency = n
		}
	}
}

// WithAuditor 固定使用的审计器；未设置时从 context 中获取
func WithAuditor(a audit.Auditor) Option {
	return func(o *options) { o.auditor = a }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithConfig 从配置中读取批量参数
func WithConfig(cfg config.BatchConfig) Option {
	return func(o *options) {
		WithWorkers(cfg.Workers)(o)
		WithChunkSize(cfg.ChunkSize)(o)
		WithChunkConcurrency(cfg.ChunkConcurrency)(o)
	}
}

// Executor 批量创建与删除的执行器
type Executor[T any, ID comparable] struct {
	entity string
	store  store.Store[T, ID]

	log *log.Helper
	sem *semaphore.Weighted

	chunkSize        int
	chunkConcurrency int

	auditor audit.Auditor
	metrics *Metrics
	tracer  trace.Tracer
}

func NewExecutor[T any, ID comparable](entity string, s store.Store[T, ID], opts ...Option) *Executor[T, ID] {
	o := options{
		logger:           log.DefaultLogger,
		workers:          config.DefaultWorkers,
		chunkSize:        config.DefaultChunkSize,
		chunkConcurrency: config.DefaultChunkConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("go-crud-guard/batch")
	}

	return &Executor[T, ID]{
		entity:           entity,
		store:            s,
		log:              log.NewHelper(log.With(o.logger, "module", "batch-executor", "entity", entity)),
		sem:              semaphore.NewWeighted(o.workers),
		chunkSize:        o.chunkSize,
		chunkConcurrency: o.chunkConcurrency,
		auditor:          o.auditor,
		metrics:          o.metrics,
		tracer:           o.tracer,
	}
}

// Create 批量创建，立即返回待完成的句柄
func (e *Executor[T, ID]) Create(ctx context.Context, items []*T, opts Options) *Future[[]Result[T]] {
	return run(ctx, e, items, opts, job[T, ID, *T, T]{
		action:  errs.OpBatchCreate,
		auditOp: audit.OpInsert,
		okMsg:   "created",
		failMsg: "create failed",
		one: func(ctx context.Context, w store.Writer[T, ID], item *T) (*T, error) {
			if item == nil {
				return nil, errNilItem
			}
			return w.Create(ctx, item)
		},
		bulk: func(ctx context.Context, w store.Writer[T, ID], items []*T) ([]*T, error) {
			for i, item := range items {
				if item == nil {
					return nil, fmt.Errorf("%w at %d", errNilItem, i)
				}
			}
			return w.CreateBulk(ctx, items)
		},
	})
}

// Delete 按 id 批量删除，立即返回待完成的句柄
func (e *Executor[T, ID]) Delete(ctx context.Context, ids []ID, opts Options) *Future[[]Result[ID]] {
	return run(ctx, e, ids, opts, job[T, ID, ID, ID]{
		action:  errs.OpBatchDelete,
		auditOp: audit.OpDelete,
		okMsg:   "deleted",
		failMsg: "delete failed",
		one: func(ctx context.Context, w store.Writer[T, ID], pk ID) (*ID, error) {
			if err := w.Delete(ctx, pk); err != nil {
				return nil, err
			}
			return &pk, nil
		},
		bulk: func(ctx context.Context, w store.Writer[T, ID], ids []ID) ([]*ID, error) {
			if err := w.DeleteBulk(ctx, ids); err != nil {
				return nil, err
			}
			out := make([]*ID, len(ids))
			for i := range ids {
				out[i] = &ids[i]
			}
			return out, nil
		},
		target: func(pk ID) string { return fmt.Sprint(pk) },
	})
}

// job 描述一种批量操作，创建与删除只在这里不同
type job[T any, ID comparable, In any, Out any] struct {
	action  string
	auditOp audit.Operation
	okMsg   string
	failMsg string

	one    func(ctx context.Context, w store.Writer[T, ID], in In) (*Out, error)
	bulk   func(ctx context.Context, w store.Writer[T, ID], chunk []In) ([]*Out, error)
	target func(in In) string
}

// submission 一次批量提交的运行状态
type submission[T any, ID comparable, In any, Out any] struct {
	e       *Executor[T, ID]
	job     job[T, ID, In, Out]
	opts    Options
	batchID uint64
	auditor audit.Auditor
}

func run[T any, ID comparable, In any, Out any](
	ctx context.Context,
	e *Executor[T, ID],
	inputs []In,
	opts Options,
	j job[T, ID, In, Out],
) *Future[[]Result[Out]] {
	fut := newFuture[[]Result[Out]]()

	if len(inputs) == 0 {
		fut.resolve([]Result[Out]{}, nil)
		return fut
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = e.chunkSize
	}

	auditor := e.auditor
	if auditor == nil {
		auditor = audit.MustFromContext(ctx)
	}
	s := &submission[T, ID, In, Out]{
		e:       e,
		job:     j,
		opts:    opts,
		batchID: id.GenerateSonyflakeID(),
		auditor: auditor,
	}

	go func() {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			fut.resolve(nil, err)
			return
		}
		defer e.sem.Release(1)

		results, err := s.execute(ctx, inputs, fut.Cancelled)
		if !fut.resolve(results, err) {
			e.log.Debugf("batch %d %s finished after its handle was cancelled", s.batchID, j.action)
		}
	}()

	return fut
}

func (s *submission[T, ID, In, Out]) execute(ctx context.Context, inputs []In, cancelled func() bool) ([]Result[Out], error) {
	ctx, span := s.e.tracer.Start(ctx, "batch."+s.job.action, trace.WithAttributes(
		attribute.String("crud.entity", s.e.entity),
		attribute.Bool("crud.batch.atomic", s.opts.Atomic),
		attribute.Int("crud.batch.size", len(inputs)),
		attribute.Int("crud.batch.chunk_size", s.opts.ChunkSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		s.e.metrics.observeDuration(s.job.action, s.opts.Atomic, time.Since(start))
	}()

	var (
		results []Result[Out]
		err     error
	)
	if s.opts.Atomic {
		results, err = s.runAtomic(ctx, inputs)
	} else {
		results = s.runBestEffort(ctx, inputs, cancelled)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return results, err
}

// runBestEffort 每个元素独立执行，失败记录为结果数据
func (s *submission[T, ID, In, Out]) runBestEffort(ctx context.Context, inputs []In, cancelled func() bool) []Result[Out] {
	results := make([]Result[Out], len(inputs))

	g := new(errgroup.Group)
	g.SetLimit(s.e.chunkConcurrency)

	offset := 0
	for _, chunk := range Chunk(inputs, s.opts.ChunkSize) {
		if cancelled() {
			break
		}
		base := offset
		offset += len(chunk)

		g.Go(func() error {
			for i, in := range chunk {
				results[base+i] = s.runOne(ctx, base+i, in)
			}
			return nil
		})
	}
	_ = g.Wait()

	// 取消后未派发的元素
	for i := offset; i < len(results); i++ {
		results[i] = Result[Out]{
			Status:  StatusFailed,
			Message: s.job.failMsg,
			Details: ErrCancelled.Error(),
		}
	}

	var ok, failed int
	for _, r := range results[:offset] {
		if r.Succeeded() {
			ok++
		} else {
			failed++
		}
	}
	s.e.metrics.observeItems(s.job.action, StatusSuccess, ok)
	s.e.metrics.observeItems(s.job.action, StatusFailed, failed)

	return results
}

func (s *submission[T, ID, In, Out]) runOne(ctx context.Context, index int, in In) Result[Out] {
	start := time.Now()
	out, err := s.job.one(ctx, s.e.store, in)

	entry := s.newEntry(ctx, index, start)
	if entry != nil && s.job.target != nil {
		entry.TargetID = s.job.target(in)
	}

	if err != nil {
		s.e.log.Warnf("%s item %d failed: %s", s.job.action, index, err.Error())
		s.record(ctx, entry, err)
		return Result[Out]{
			Status:  StatusFailed,
			Message: s.job.failMsg,
			Details: err.Error(),
		}
	}

	if entry != nil && s.job.auditOp == audit.OpInsert {
		if mErr := entry.SetPostValue(out); mErr != nil {
			s.e.log.Warnf("marshal audit post value failed: %s", mErr.Error())
		}
	}
	s.record(ctx, entry, nil)

	return Result[Out]{
		Status:  StatusSuccess,
		Message: s.job.okMsg,
		Data:    out,
	}
}

// runAtomic 整批在一个事务内顺序执行，任一分块失败即回滚
func (s *submission[T, ID, In, Out]) runAtomic(ctx context.Context, inputs []In) ([]Result[Out], error) {
	start := time.Now()
	entry := s.newEntry(ctx, -1, start)

	fail := func(index int, rolledBack bool, cause error) ([]Result[Out], error) {
		err := &errs.BatchOperationError{
			Operation:  s.job.action,
			Entity:     s.e.entity,
			Index:      index,
			RolledBack: rolledBack,
			Cause:      cause,
		}
		s.e.log.Errorf("atomic %s failed: %s", s.job.action, err.Error())
		s.e.metrics.observeItems(s.job.action, StatusFailed, len(inputs))
		s.record(ctx, entry, err)
		return nil, err
	}

	tx, err := s.e.store.Begin(ctx)
	if err != nil {
		return fail(0, true, fmt.Errorf("begin transaction failed: %w", err))
	}

	results := make([]Result[Out], 0, len(inputs))
	offset := 0
	for _, chunk := range Chunk(inputs, s.opts.ChunkSize) {
		outs, bErr := s.job.bulk(ctx, tx, chunk)
		if bErr != nil {
			rErr := tx.Rollback()
			if rErr != nil {
				s.e.log.Errorf("rollback failed: %s", rErr.Error())
				bErr = fmt.Errorf("%w: rollback failed: %v", bErr, rErr)
			}
			return fail(offset, rErr == nil, bErr)
		}
		for _, out := range outs {
			results = append(results, Result[Out]{
				Status:  StatusSuccess,
				Message: s.job.okMsg,
				Data:    out,
			})
		}
		offset += len(chunk)
	}

	if err = tx.Commit(); err != nil {
		// 提交失败时事务未生效，补一次回滚释放连接
		_ = tx.Rollback()
		return fail(0, true, fmt.Errorf("commit failed: %w", err))
	}

	s.e.metrics.observeItems(s.job.action, StatusSuccess, len(inputs))
	if entry != nil {
		entry.Extra = map[string]any{"items": len(inputs)}
	}
	s.record(ctx, entry, nil)

	return results, nil
}

func (s *submission[T, ID, In, Out]) newEntry(ctx context.Context, index int, start time.Time) *audit.Entry {
	entry := audit.NewEntry(ctx, s.e.entity, s.job.action, s.job.auditOp)
	if entry == nil {
		return nil
	}
	entry.BatchID = s.batchID
	entry.Atomic = s.opts.Atomic
	entry.Index = index
	entry.Timestamp = start.UTC()
	return entry
}

func (s *submission[T, ID, In, Out]) record(ctx context.Context, entry *audit.Entry, err error) {
	if entry == nil {
		return
	}
	entry.CostMS = time.Since(entry.Timestamp).Milliseconds()
	if err != nil {
		entry.Status = audit.StatusFail
		entry.ErrorMessage = err.Error()
	} else {
		entry.Status = audit.StatusOK
	}
	if aErr := s.auditor.Record(ctx, entry); aErr != nil {
		s.e.log.Warnf("record audit entry failed: %s", aErr.Error())
	}
}
