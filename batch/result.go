package batch

import (
	"fmt"
	"strings"
)

// Status 单条批量操作的结果状态
type Status int

const (
	StatusUnspecified Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnspecified:
		return "UNSPECIFIED"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "SUCCESS":
		*s = StatusSuccess
	case "FAILED":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown batch status %q", string(b))
	}
	return nil
}

// Result 非原子模式下每个输入元素对应一条结果，返回后不再修改
type Result[T any] struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Status  Status `json:"status"`
	Data    *T     `json:"data,omitempty"`
}

func (r Result[T]) Succeeded() bool { return r.Status == StatusSuccess }

// Options 单次批量提交的参数
type Options struct {
	// Atomic 为 true 时整批在同一事务内执行，任一失败则全部回滚
	Atomic bool
	// ChunkSize 每次后端调用处理的元素数量，<=0 时使用执行器默认值
	ChunkSize int
}

// Chunk 将输入按 size 切分为有序分块，size<=0 时整体作为一个分块
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
