package viewer

// Viewer Context 的简单实现，通常由鉴权中间件构造
type Viewer struct {
	User    uint64
	Tenant  uint64
	Name    string
	Trace   string
	System  bool
	NoAudit bool
}

var _ Context = (*Viewer)(nil)

func (v *Viewer) UserID() uint64        { return v.User }
func (v *Viewer) TenantID() uint64      { return v.Tenant }
func (v *Viewer) Username() string      { return v.Name }
func (v *Viewer) TraceID() string       { return v.Trace }
func (v *Viewer) IsSystemContext() bool { return v.System }

// ShouldAudit 系统任务与显式关闭审计的访问者不记录审计
func (v *Viewer) ShouldAudit() bool { return !v.System && !v.NoAudit }
