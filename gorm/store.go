package gorm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tx7do/go-utils/mapper"

	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/store"
)

const defaultPrimaryKey = "id"

type storeOptions struct {
	primaryKey string
	logger     log.Logger
}

type StoreOption func(*storeOptions)

// WithPrimaryKey 设置主键列名，默认 id
func WithPrimaryKey(column string) StoreOption {
	return func(o *storeOptions) {
		if column != "" {
			o.primaryKey = column
		}
	}
}

func WithLogger(logger log.Logger) StoreOption {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// writer 写操作实现，Store 与 Tx 共用
type writer[DTO any, ENTITY any, ID comparable] struct {
	db     *gorm.DB
	mapper *mapper.CopierMapper[DTO, ENTITY]
	pk     string
	inTx   bool
	log    *log.Helper
}

// Store 基于 GORM 的持久化实现
type Store[DTO any, ENTITY any, ID comparable] struct {
	writer[DTO, ENTITY, ID]
}

var _ store.Store[struct{}, int64] = (*Store[struct{}, struct{}, int64])(nil)

func NewStore[DTO any, ENTITY any, ID comparable](db *gorm.DB, m *mapper.CopierMapper[DTO, ENTITY], opts ...StoreOption) *Store[DTO, ENTITY, ID] {
	o := storeOptions{primaryKey: defaultPrimaryKey, logger: log.DefaultLogger}
	for _, opt := range opts {
		opt(&o)
	}
	if m == nil {
		m = mapper.NewCopierMapper[DTO, ENTITY]()
	}

	return &Store[DTO, ENTITY, ID]{
		writer: writer[DTO, ENTITY, ID]{
			db:     db,
			mapper: m,
			pk:     o.primaryKey,
			log:    log.NewHelper(log.With(o.logger, "module", "gorm-store")),
		},
	}
}

// Query 使用同一谓词执行过滤、排序与分页
func (s *Store[DTO, ENTITY, ID]) Query(ctx context.Context, where predicate.Expr, orders []predicate.Order, offset, limit int) ([]*DTO, error) {
	if s.db == nil {
		return nil, errors.New("db is nil")
	}

	var entities []*ENTITY
	if err := s.db.WithContext(ctx).
		Model(new(ENTITY)).
		Scopes(WhereScope(where), OrderScope(orders), PagingScope(offset, limit)).
		Find(&entities).Error; err != nil {
		s.log.Errorf("query list failed: %s", err.Error())
		return nil, fmt.Errorf("query list failed: %w", err)
	}

	dtos := make([]*DTO, 0, len(entities))
	for _, e := range entities {
		dtos = append(dtos, s.mapper.ToDTO(e))
	}
	return dtos, nil
}

// Count 计算符合条件的记录数
func (s *Store[DTO, ENTITY, ID]) Count(ctx context.Context, where predicate.Expr) (int64, error) {
	if s.db == nil {
		return 0, errors.New("db is nil")
	}

	var cnt int64
	if err := s.db.WithContext(ctx).
		Model(new(ENTITY)).
		Scopes(WhereScope(where)).
		Count(&cnt).Error; err != nil {
		s.log.Errorf("query count failed: %s", err.Error())
		return 0, fmt.Errorf("query count failed: %w", err)
	}
	return cnt, nil
}

// Begin 开启事务
func (s *Store[DTO, ENTITY, ID]) Begin(ctx context.Context) (store.Tx[DTO, ID], error) {
	if s.db == nil {
		return nil, errors.New("db is nil")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.log.Errorf("begin transaction failed: %s", tx.Error.Error())
		return nil, fmt.Errorf("begin transaction failed: %w", tx.Error)
	}

	w := s.writer
	w.db = tx
	w.inTx = true
	return &Tx[DTO, ENTITY, ID]{writer: w}, nil
}

func (w *writer[DTO, ENTITY, ID]) Create(ctx context.Context, item *DTO) (*DTO, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}

	ent := w.mapper.ToEntity(item)
	if err := w.db.WithContext(ctx).Create(ent).Error; err != nil {
		w.log.Errorf("create failed: %s", err.Error())
		return nil, fmt.Errorf("create failed: %w", err)
	}
	return w.mapper.ToDTO(ent), nil
}

func (w *writer[DTO, ENTITY, ID]) Delete(ctx context.Context, id ID) error {
	res := w.db.WithContext(ctx).
		Where(clause.Eq{Column: column(w.pk), Value: id}).
		Delete(new(ENTITY))
	if res.Error != nil {
		w.log.Errorf("delete failed: %s", res.Error.Error())
		return fmt.Errorf("delete failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %v", store.ErrNotFound, id)
	}
	return nil
}

func (w *writer[DTO, ENTITY, ID]) CreateBulk(ctx context.Context, items []*DTO) ([]*DTO, error) {
	if len(items) == 0 {
		return []*DTO{}, nil
	}

	ents := make([]*ENTITY, 0, len(items))
	for _, d := range items {
		if d == nil {
			return nil, errors.New("item is nil")
		}
		ents = append(ents, w.mapper.ToEntity(d))
	}

	if err := w.db.WithContext(ctx).Create(&ents).Error; err != nil {
		w.log.Errorf("bulk create failed: %s", err.Error())
		return nil, fmt.Errorf("bulk create failed: %w", err)
	}

	out := make([]*DTO, 0, len(ents))
	for _, e := range ents {
		out = append(out, w.mapper.ToDTO(e))
	}
	return out, nil
}

// DeleteBulk 删除全部 id；任一 id 不存在时返回 store.ErrNotFound。
// 不在事务中时自行开启事务，保证要么全部删除要么全部保留。
func (w *writer[DTO, ENTITY, ID]) DeleteBulk(ctx context.Context, ids []ID) error {
	if len(ids) == 0 {
		return nil
	}

	if w.inTx {
		return w.deleteIn(w.db.WithContext(ctx), ids)
	}
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return w.deleteIn(tx, ids)
	})
}

func (w *writer[DTO, ENTITY, ID]) deleteIn(db *gorm.DB, ids []ID) error {
	values, unique := uniqueValues(ids)

	res := db.Where(clause.IN{Column: column(w.pk), Values: values}).Delete(new(ENTITY))
	if res.Error != nil {
		w.log.Errorf("bulk delete failed: %s", res.Error.Error())
		return fmt.Errorf("bulk delete failed: %w", res.Error)
	}
	if res.RowsAffected != int64(unique) {
		return fmt.Errorf("%w: %d of %d ids deleted", store.ErrNotFound, res.RowsAffected, unique)
	}
	return nil
}

func uniqueValues[ID comparable](ids []ID) ([]any, int) {
	seen := make(map[ID]struct{}, len(ids))
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		values = append(values, id)
	}
	return values, len(values)
}

// Tx GORM 事务，Commit 与 Rollback 只能调用一次
type Tx[DTO any, ENTITY any, ID comparable] struct {
	writer[DTO, ENTITY, ID]

	done atomic.Bool
}

func (t *Tx[DTO, ENTITY, ID]) Commit() error {
	if t.done.Swap(true) {
		return store.ErrTxDone
	}
	if err := t.db.Commit().Error; err != nil {
		t.log.Errorf("commit failed: %s", err.Error())
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Tx[DTO, ENTITY, ID]) Rollback() error {
	if t.done.Swap(true) {
		return store.ErrTxDone
	}
	if err := t.db.Rollback().Error; err != nil {
		t.log.Errorf("rollback failed: %s", err.Error())
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}
