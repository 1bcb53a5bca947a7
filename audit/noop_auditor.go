package audit

import "context"

// noopAuditor 不执行任何操作，用于默认情况
type noopAuditor struct{}

func (*noopAuditor) Record(_ context.Context, _ *Entry) error { return nil }
func (*noopAuditor) Flush(_ context.Context) error            { return nil }

func NewNoopAuditor() Auditor {
	return &noopAuditor{}
}
