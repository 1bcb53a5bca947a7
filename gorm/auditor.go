package gorm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tx7do/go-crud-guard/audit"
)

// AuditRecord 审计日志表
type AuditRecord struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement"`
	TraceID      string         `gorm:"size:64;index"`
	BatchID      uint64         `gorm:"index"`
	UserID       uint64         `gorm:"index"`
	TenantID     uint64         `gorm:"index"`
	Username     string         `gorm:"size:128"`
	Entity       string         `gorm:"size:64;index"`
	Action       string         `gorm:"size:32"`
	Operation    string         `gorm:"size:16"`
	Atomic       bool           `gorm:"not null;default:false"`
	ItemIndex    int            `gorm:"column:item_index"`
	TargetID     string         `gorm:"size:64"`
	PostValue    datatypes.JSON `gorm:"type:json"`
	Status       int            `gorm:"not null"`
	ErrorMessage string         `gorm:"type:text"`
	CostMS       int64
	Extra        datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time      `gorm:"index"`
}

func (AuditRecord) TableName() string { return "audit_records" }

// Auditor 将审计条目同步写入数据库
type Auditor struct {
	db  *gorm.DB
	log *log.Helper
}

var _ audit.Auditor = (*Auditor)(nil)

func NewAuditor(db *gorm.DB, logger log.Logger) *Auditor {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Auditor{
		db:  db,
		log: log.NewHelper(log.With(logger, "module", "gorm-auditor")),
	}
}

func (a *Auditor) Record(ctx context.Context, e *audit.Entry) error {
	if e == nil {
		return nil
	}

	rec, err := toAuditRecord(e)
	if err != nil {
		return err
	}

	if err = a.db.WithContext(ctx).Create(rec).Error; err != nil {
		a.log.Errorf("write audit record failed: %s", err.Error())
		return fmt.Errorf("write audit record failed: %w", err)
	}
	return nil
}

func (a *Auditor) Flush(_ context.Context) error { return nil }

func toAuditRecord(e *audit.Entry) (*AuditRecord, error) {
	rec := &AuditRecord{
		TraceID:      e.TraceID,
		BatchID:      e.BatchID,
		UserID:       e.UserID,
		TenantID:     e.TenantID,
		Username:     e.Username,
		Entity:       e.Entity,
		Action:       e.Action,
		Operation:    string(e.Operation),
		Atomic:       e.Atomic,
		ItemIndex:    e.Index,
		TargetID:     e.TargetID,
		Status:       int(e.Status),
		ErrorMessage: e.ErrorMessage,
		CostMS:       e.CostMS,
		CreatedAt:    e.Timestamp,
	}
	if len(e.PostValue) > 0 {
		rec.PostValue = datatypes.JSON(e.PostValue)
	}
	if len(e.Extra) > 0 {
		b, err := json.Marshal(e.Extra)
		if err != nil {
			return nil, fmt.Errorf("marshal audit extra failed: %w", err)
		}
		rec.Extra = b
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec, nil
}
