package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/tx7do/go-utils/mapper"

	bsonV2 "go.mongodb.org/mongo-driver/v2/bson"
	mongoV2 "go.mongodb.org/mongo-driver/v2/mongo"
	optionsV2 "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/store"
)

const defaultIDField = "_id"

type writer[DTO any, ENTITY any, ID comparable] struct {
	coll    *mongoV2.Collection
	mapper  *mapper.CopierMapper[DTO, ENTITY]
	idField string
	sess    *mongoV2.Session
	log     *log.Helper
}

// Store MongoDB 集合上的持久化实现
type Store[DTO any, ENTITY any, ID comparable] struct {
	writer[DTO, ENTITY, ID]

	client *Client
}

var _ store.Store[struct{}, string] = (*Store[struct{}, struct{}, string])(nil)

func NewStore[DTO any, ENTITY any, ID comparable](client *Client, collection string, m *mapper.CopierMapper[DTO, ENTITY], logger log.Logger) (*Store[DTO, ENTITY, ID], error) {
	if client == nil {
		return nil, errors.New("mongodb client is nil")
	}
	if collection == "" {
		return nil, errors.New("collection is empty")
	}
	if m == nil {
		m = mapper.NewCopierMapper[DTO, ENTITY]()
	}
	if logger == nil {
		logger = log.DefaultLogger
	}

	return &Store[DTO, ENTITY, ID]{
		writer: writer[DTO, ENTITY, ID]{
			coll:    client.Collection(collection),
			mapper:  m,
			idField: defaultIDField,
			log:     log.NewHelper(log.With(logger, "module", "mongodb-store")),
		},
		client: client,
	}, nil
}

// WithIDField 设置主键字段名，默认 _id
func (s *Store[DTO, ENTITY, ID]) WithIDField(field string) *Store[DTO, ENTITY, ID] {
	if field != "" {
		s.idField = field
	}
	return s
}

// findOptions 构建排序与分页选项
func findOptions(orders []predicate.Order, offset, limit int) *optionsV2.FindOptionsBuilder {
	opts := optionsV2.Find()
	if sort := BuildSort(orders); len(sort) > 0 {
		opts.SetSort(sort)
	}
	if limit > 0 {
		if offset > 0 {
			opts.SetSkip(int64(offset))
		}
		opts.SetLimit(int64(limit))
	}
	return opts
}

// Query 使用同一过滤文档执行过滤、排序与分页
func (s *Store[DTO, ENTITY, ID]) Query(ctx context.Context, where predicate.Expr, orders []predicate.Order, offset, limit int) ([]*DTO, error) {
	filterDoc, err := BuildFilter(where)
	if err != nil {
		return nil, err
	}

	cursor, err := s.coll.Find(ctx, filterDoc, findOptions(orders, offset, limit))
	if err != nil {
		s.log.Errorf("query list failed: %s", err.Error())
		return nil, fmt.Errorf("query list failed: %w", err)
	}
	defer func(cursor *mongoV2.Cursor, ctx context.Context) {
		if err := cursor.Close(ctx); err != nil {
			s.log.Errorf("failed to close cursor: %v", err)
		}
	}(cursor, ctx)

	var entities []*ENTITY
	if err = cursor.All(ctx, &entities); err != nil {
		s.log.Errorf("decode documents failed: %s", err.Error())
		return nil, fmt.Errorf("decode documents failed: %w", err)
	}

	dtos := make([]*DTO, 0, len(entities))
	for _, e := range entities {
		dtos = append(dtos, s.mapper.ToDTO(e))
	}
	return dtos, nil
}

// Count 计算符合条件的文档数
func (s *Store[DTO, ENTITY, ID]) Count(ctx context.Context, where predicate.Expr) (int64, error) {
	filterDoc, err := BuildFilter(where)
	if err != nil {
		return 0, err
	}

	cnt, err := s.coll.CountDocuments(ctx, filterDoc)
	if err != nil {
		s.log.Errorf("query count failed: %s", err.Error())
		return 0, fmt.Errorf("query count failed: %w", err)
	}
	return cnt, nil
}

// Begin 在新会话上开启多文档事务
func (s *Store[DTO, ENTITY, ID]) Begin(ctx context.Context) (store.Tx[DTO, ID], error) {
	sess, err := s.client.StartSession()
	if err != nil {
		s.log.Errorf("start session failed: %s", err.Error())
		return nil, fmt.Errorf("start session failed: %w", err)
	}
	if err = sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		s.log.Errorf("start transaction failed: %s", err.Error())
		return nil, fmt.Errorf("start transaction failed: %w", err)
	}

	w := s.writer
	w.sess = sess
	return &Tx[DTO, ENTITY, ID]{writer: w}, nil
}

// bind 在事务中时把会话绑定到 context
func (w *writer[DTO, ENTITY, ID]) bind(ctx context.Context) context.Context {
	if w.sess == nil {
		return ctx
	}
	return mongoV2.NewSessionContext(ctx, w.sess)
}

func (w *writer[DTO, ENTITY, ID]) Create(ctx context.Context, item *DTO) (*DTO, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}

	ent := w.mapper.ToEntity(item)
	if _, err := w.coll.InsertOne(w.bind(ctx), ent); err != nil {
		w.log.Errorf("create failed: %s", err.Error())
		return nil, fmt.Errorf("create failed: %w", err)
	}
	return w.mapper.ToDTO(ent), nil
}

func (w *writer[DTO, ENTITY, ID]) Delete(ctx context.Context, id ID) error {
	res, err := w.coll.DeleteOne(w.bind(ctx), bsonV2.M{w.idField: id})
	if err != nil {
		w.log.Errorf("delete failed: %s", err.Error())
		return fmt.Errorf("delete failed: %w", err)
	}
	if res.DeletedCount == 0 {
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

	if _, err := w.coll.InsertMany(w.bind(ctx), ents); err != nil {
		w.log.Errorf("bulk create failed: %s", err.Error())
		return nil, fmt.Errorf("bulk create failed: %w", err)
	}

	out := make([]*DTO, 0, len(ents))
	for _, e := range ents {
		out = append(out, w.mapper.ToDTO(e))
	}
	return out, nil
}

// DeleteBulk 任一 id 不存在时返回 store.ErrNotFound。
// 不在事务中时通过会话事务执行，需要副本集或分片集群。
func (w *writer[DTO, ENTITY, ID]) DeleteBulk(ctx context.Context, ids []ID) error {
	if len(ids) == 0 {
		return nil
	}
	if w.sess != nil {
		return w.deleteIn(w.bind(ctx), ids)
	}

	sess, err := w.coll.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session failed: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, w.deleteIn(sc, ids)
	})
	return err
}

func (w *writer[DTO, ENTITY, ID]) deleteIn(ctx context.Context, ids []ID) error {
	seen := make(map[ID]struct{}, len(ids))
	values := make(bsonV2.A, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		values = append(values, id)
	}

	res, err := w.coll.DeleteMany(ctx, bsonV2.M{w.idField: bsonV2.M{"$in": values}})
	if err != nil {
		w.log.Errorf("bulk delete failed: %s", err.Error())
		return fmt.Errorf("bulk delete failed: %w", err)
	}
	if res.DeletedCount != int64(len(values)) {
		return fmt.Errorf("%w: %d of %d ids deleted", store.ErrNotFound, res.DeletedCount, len(values))
	}
	return nil
}

// Tx 会话事务，Commit 与 Rollback 只能调用一次，结束后关闭会话
type Tx[DTO any, ENTITY any, ID comparable] struct {
	writer[DTO, ENTITY, ID]

	done atomic.Bool
}

func (t *Tx[DTO, ENTITY, ID]) Commit() error {
	if t.done.Swap(true) {
		return store.ErrTxDone
	}
	ctx := context.Background()
	defer t.sess.EndSession(ctx)

	if err := t.sess.CommitTransaction(ctx); err != nil {
		t.log.Errorf("commit failed: %s", err.Error())
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Tx[DTO, ENTITY, ID]) Rollback() error {
	if t.done.Swap(true) {
		return store.ErrTxDone
	}
	ctx := context.Background()
	defer t.sess.EndSession(ctx)

	if err := t.sess.AbortTransaction(ctx); err != nil {
		t.log.Errorf("rollback failed: %s", err.Error())
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}
