package audit

import (
	"context"
	"time"

	"github.com/tx7do/go-crud-guard/viewer"
)

type contextKey struct{}

// WithAuditor 将 Auditor 实例注入 context
func WithAuditor(ctx context.Context, a Auditor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext 从 context 中提取 Auditor
func FromContext(ctx context.Context) (Auditor, bool) {
	if ctx == nil {
		return nil, false
	}
	a, ok := ctx.Value(contextKey{}).(Auditor)
	return a, ok && a != nil
}

// MustFromContext 从 context 中提取 Auditor，若不存在则返回空实现
func MustFromContext(ctx context.Context) Auditor {
	if a, ok := FromContext(ctx); ok {
		return a
	}
	return NewNoopAuditor()
}

// NewEntry 根据 context 中的访问者信息构造审计条目。
// 访问者不需要审计时返回 nil。
func NewEntry(ctx context.Context, entity, action string, op Operation) *Entry {
	vc := viewer.MustFromContext(ctx)
	if !vc.ShouldAudit() {
		return nil
	}
	return &Entry{
		TraceID:   vc.TraceID(),
		Timestamp: time.Now().UTC(),
		UserID:    vc.UserID(),
		TenantID:  vc.TenantID(),
		Username:  vc.Username(),
		Entity:    entity,
		Action:    action,
		Operation: op,
		Index:     -1,
	}
}
