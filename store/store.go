package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tx7do/go-crud-guard/predicate"
)

var (
	// ErrNotFound 删除或查询的记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrTxDone 事务已提交或回滚
	ErrTxDone = errors.New("transaction already committed or rolled back")
	// ErrTxUnsupported 后端不支持事务，无法执行原子批量操作
	ErrTxUnsupported = errors.New("transactions are not supported by this backend")
)

// Reader 分页查询所需的读操作
type Reader[T any] interface {
	Query(ctx context.Context, where predicate.Expr, orders []predicate.Order, offset, limit int) ([]*T, error)
	Count(ctx context.Context, where predicate.Expr) (int64, error)
}

// Writer 批量操作所需的写操作
type Writer[T any, ID comparable] interface {
	Create(ctx context.Context, item *T) (*T, error)
	Delete(ctx context.Context, id ID) error
	CreateBulk(ctx context.Context, items []*T) ([]*T, error)
	// DeleteBulk 任意一个 id 不存在时返回 ErrNotFound
	DeleteBulk(ctx context.Context, ids []ID) error
}

// Tx 事务内的写操作
type Tx[T any, ID comparable] interface {
	Writer[T, ID]
	Commit() error
	Rollback() error
}

// Store 持久化后端需要实现的全部操作
type Store[T any, ID comparable] interface {
	Reader[T]
	Writer[T, ID]
	Begin(ctx context.Context) (Tx[T, ID], error)
}

type Rollbacker interface {
	Rollback() error
}

// Rollback 回滚事务，回滚失败时把回滚错误附加到原始错误上
func Rollback[T Rollbacker](tx T, err error) error {
	if rErr := tx.Rollback(); rErr != nil {
		if err == nil {
			err = rErr
		} else {
			err = fmt.Errorf("%w: rollback failed: %v", err, rErr)
		}
	}
	return err
}
