package viewer

import "context"

// Context 当前访问者（Viewer）上下文接口，批量操作据此生成审计记录
type Context interface {
	// UserID 返回当前用户ID
	UserID() uint64

	// TenantID 返回租户ID
	TenantID() uint64

	// Username 返回当前用户账号名
	Username() string

	// TraceID 返回当前请求的 Trace ID（用于日志跟踪）
	TraceID() string

	// IsSystemContext 判断是否为系统后台任务
	IsSystemContext() bool

	// ShouldAudit 返回是否需要记录审计日志
	ShouldAudit() bool
}

type contextKey struct{}

// WithContext 将 Context 注入 context
func WithContext(ctx context.Context, vc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, vc)
}

// FromContext 从 context 中提取 Context
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return nil, false
	}
	vc, ok := ctx.Value(contextKey{}).(Context)
	return vc, ok && vc != nil
}

// MustFromContext 从 context 中提取 Context，若不存在则返回匿名上下文
func MustFromContext(ctx context.Context) Context {
	if vc, ok := FromContext(ctx); ok {
		return vc
	}
	return NewNoopContext()
}
