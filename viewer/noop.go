package viewer

// noopContext 表示匿名或未授权用户，不触发审计
type noopContext struct{}

func (noopContext) UserID() uint64        { return 0 }
func (noopContext) TenantID() uint64      { return 0 }
func (noopContext) Username() string      { return "" }
func (noopContext) TraceID() string       { return "" }
func (noopContext) IsSystemContext() bool { return false }
func (noopContext) ShouldAudit() bool     { return false }

// NewNoopContext 创建一个匿名上下文实例
func NewNoopContext() Context {
	return noopContext{}
}
