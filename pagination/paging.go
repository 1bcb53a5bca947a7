package pagination

import (
	"errors"
	"math"
)

var (
	ErrInvalidPage     = errors.New("page must be greater than or equal to 0")
	ErrInvalidPageSize = errors.New("page size must be greater than 0")
	ErrPageSizeTooBig  = errors.New("page size exceeds the allowed maximum")
)

// Paging 基于页码的分页参数，页码从 0 开始
type Paging struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Offset 返回偏移量，调用前应先 Validate
func (p Paging) Offset() int {
	return p.Page * p.PageSize
}

// Limit 返回每页条数
func (p Paging) Limit() int {
	return p.PageSize
}

// Validate 校验分页参数，maxPageSize <= 0 时不限制每页条数
func (p Paging) Validate(maxPageSize int) error {
	if p.Page < 0 {
		return ErrInvalidPage
	}
	if p.PageSize <= 0 {
		return ErrInvalidPageSize
	}
	if maxPageSize > 0 && p.PageSize > maxPageSize {
		return ErrPageSizeTooBig
	}
	// 偏移量必须能用 int 表示
	if p.Page > math.MaxInt/p.PageSize {
		return ErrInvalidPage
	}
	return nil
}

// PagingResult 通用分页返回
type PagingResult[E any] struct {
	Items    []*E  `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// EmptyPagingResult 返回没有任何数据的分页结果
func EmptyPagingResult[E any](p Paging) *PagingResult[E] {
	return &PagingResult[E]{
		Items:    []*E{},
		Total:    0,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

// TotalPages 总页数
func (r *PagingResult[E]) TotalPages() int64 {
	if r == nil || r.PageSize <= 0 {
		return 0
	}
	return (r.Total + int64(r.PageSize) - 1) / int64(r.PageSize)
}
