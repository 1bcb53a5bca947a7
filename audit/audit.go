package audit

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// Auditor 负责记录和管理审计日志的生命周期
type Auditor interface {
	// Record 由调用者传入 context 和 entry，Auditor 内部决定异步缓冲还是同步写入
	Record(ctx context.Context, entry *Entry) error

	// Flush 确保所有待处理的日志都被提交到最终存储
	Flush(ctx context.Context) error
}

// LogAuditor 将审计条目写入 kratos 日志
type LogAuditor struct {
	logger log.Logger
}

func NewLogAuditor(logger log.Logger) *LogAuditor {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &LogAuditor{logger: log.With(logger, "module", "audit")}
}

func (a *LogAuditor) Record(_ context.Context, e *Entry) error {
	if e == nil {
		return nil
	}

	level := log.LevelInfo
	if e.Status != StatusOK {
		level = log.LevelWarn
	}

	return a.logger.Log(level,
		"trace_id", e.TraceID,
		"batch_id", e.BatchID,
		"user_id", e.UserID,
		"tenant_id", e.TenantID,
		"entity", e.Entity,
		"action", e.Action,
		"operation", string(e.Operation),
		"atomic", e.Atomic,
		"index", e.Index,
		"target_id", e.TargetID,
		"status", e.Status.String(),
		"error", e.ErrorMessage,
		"cost_ms", e.CostMS,
	)
}

func (a *LogAuditor) Flush(_ context.Context) error { return nil }

// MemoryAuditor 在内存中保存审计条目，用于测试和调试
type MemoryAuditor struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewMemoryAuditor() *MemoryAuditor {
	return &MemoryAuditor{}
}

func (a *MemoryAuditor) Record(_ context.Context, e *Entry) error {
	if e == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e.Clone())
	return nil
}

func (a *MemoryAuditor) Flush(_ context.Context) error { return nil }

// Entries 返回已记录条目的副本
func (a *MemoryAuditor) Entries() []*Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Entry(nil), a.entries...)
}
