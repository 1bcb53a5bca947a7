package audit

import (
	"encoding/json"
	"time"
)

type Operation string

const (
	OpInsert Operation = "INSERT"
	OpDelete Operation = "DELETE"
)

type Status int

const (
	StatusOK   Status = 0
	StatusFail Status = 1
)

func (s Status) String() string {
	if s == StatusOK {
		return "OK"
	}
	return "FAIL"
}

// Entry 批量操作的审计日志条目
type Entry struct {
	// --- 基础上下文 ---
	TraceID   string    `json:"trace_id"`  // 全链路追踪 ID
	Timestamp time.Time `json:"timestamp"` // 发生时间（UTC）

	// --- 操作者信息 ---
	UserID   uint64 `json:"user_id,omitempty"`
	TenantID uint64 `json:"tenant_id,omitempty"`
	Username string `json:"username,omitempty"` // 冗余存储，防止用户删除后无法溯源

	// --- 操作行为 ---
	BatchID   uint64    `json:"batch_id"`            // 一次批量提交的编号
	Entity    string    `json:"entity"`              // 实体类型
	Action    string    `json:"action"`              // batch_create / batch_delete
	Operation Operation `json:"operation,omitempty"` // INSERT / DELETE
	Atomic    bool      `json:"atomic"`

	// --- 数据变更 ---
	Index     int             `json:"index"`                // 条目在批量中的下标，整批记录时为 -1
	TargetID  string          `json:"target_id,omitempty"`  // 被操作对象的 ID
	PostValue json.RawMessage `json:"post_value,omitempty"` // 创建后的值

	// --- 结果状态 ---
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CostMS       int64  `json:"cost_ms,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

func (e *Entry) SetPostValue(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.PostValue = b
	return nil
}

// Clone 复制条目，Extra 浅拷贝
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Extra != nil {
		c.Extra = make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
