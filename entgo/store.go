package entgo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"entgo.io/ent/dialect"
	entSql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/sqlx"
	"github.com/tx7do/go-crud-guard/store"
)

type writer[T any, ID comparable] struct {
	conn    dialect.ExecQuerier
	dialect string
	table   sqlx.Table[T]
	inTx    bool
	log     *log.Helper
}

// Store 基于 ent SQL 构建器的持久化实现，不依赖生成代码
type Store[T any, ID comparable] struct {
	writer[T, ID]

	drv *entSql.Driver
}

var _ store.Store[struct{}, int64] = (*Store[struct{}, int64])(nil)

func NewStore[T any, ID comparable](drv *entSql.Driver, table sqlx.Table[T], logger log.Logger) (*Store[T, ID], error) {
	if drv == nil {
		return nil, errors.New("ent driver is nil")
	}
	if table.Scan == nil || table.Values == nil {
		return nil, errors.New("table scan or values func missing")
	}
	idents := []string{table.Name, table.PrimaryKey}
	idents = append(idents, table.Columns...)
	idents = append(idents, table.InsertColumns...)
	for _, ident := range idents {
		if !IsValidIdent(ident) {
			return nil, fmt.Errorf("invalid identifier %q", ident)
		}
	}
	if len(table.Columns) == 0 || len(table.InsertColumns) == 0 {
		return nil, errors.New("table columns missing")
	}
	if logger == nil {
		logger = log.DefaultLogger
	}

	return &Store[T, ID]{
		writer: writer[T, ID]{
			conn:    drv,
			dialect: drv.Dialect(),
			table:   table,
			log:     log.NewHelper(log.With(logger, "module", "ent-store")),
		},
		drv: drv,
	}, nil
}

func (w *writer[T, ID]) selector(columns ...string) *entSql.Selector {
	return entSql.Dialect(w.dialect).Select(columns...).From(entSql.Table(w.table.Name))
}

// Query 使用同一个 Selector 执行过滤、排序与分页
func (s *Store[T, ID]) Query(ctx context.Context, where predicate.Expr, orders []predicate.Order, offset, limit int) ([]*T, error) {
	sel := s.selector(s.table.Columns...)

	filter, err := BuildSelector(where)
	if err != nil {
		return nil, err
	}
	if filter != nil {
		filter(sel)
	}
	if order := BuildOrder(orders); order != nil {
		order(sel)
	}
	if limit > 0 {
		sel.Offset(offset).Limit(limit)
	}

	query, args := sel.Query()
	rows := &entSql.Rows{}
	if err = s.conn.Query(ctx, query, args, rows); err != nil {
		s.log.Errorf("query list failed: %s", err.Error())
		return nil, fmt.Errorf("query list failed: %w", err)
	}
	defer func(rows *entSql.Rows) {
		if err := rows.Close(); err != nil {
			s.log.Errorf("close rows failed: %s", err.Error())
		}
	}(rows)

	items := make([]*T, 0)
	for rows.Next() {
		item, err := s.table.Scan(rows)
		if err != nil {
			s.log.Errorf("scan row failed: %s", err.Error())
			return nil, fmt.Errorf("scan row failed: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows failed: %w", err)
	}
	return items, nil
}

// Count 计算符合条件的记录数
func (s *Store[T, ID]) Count(ctx context.Context, where predicate.Expr) (int64, error) {
	filter, err := BuildSelector(where)
	if err != nil {
		return 0, err
	}
	return s.count(ctx, filter)
}

func (w *writer[T, ID]) count(ctx context.Context, filter func(*entSql.Selector)) (int64, error) {
	sel := w.selector(entSql.Count("*"))
	if filter != nil {
		filter(sel)
	}

	query, args := sel.Query()
	rows := &entSql.Rows{}
	if err := w.conn.Query(ctx, query, args, rows); err != nil {
		w.log.Errorf("query count failed: %s", err.Error())
		return 0, fmt.Errorf("query count failed: %w", err)
	}
	defer func(rows *entSql.Rows) {
		if err := rows.Close(); err != nil {
			w.log.Errorf("close rows failed: %s", err.Error())
		}
	}(rows)

	var n int64
	if !rows.Next() {
		return 0, errors.New("count returned no rows")
	}
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("scan count failed: %w", err)
	}
	return n, nil
}

// Begin 开启事务
func (s *Store[T, ID]) Begin(ctx context.Context) (store.Tx[T, ID], error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		s.log.Errorf("begin transaction failed: %s", err.Error())
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}

	w := s.writer
	w.conn = tx
	w.inTx = true
	return &Tx[T, ID]{writer: w, tx: tx}, nil
}

func (w *writer[T, ID]) Create(ctx context.Context, item *T) (*T, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}

	ins := entSql.Dialect(w.dialect).
		Insert(w.table.Name).
		Columns(w.table.InsertColumns...).
		Values(argValues(w.table.Values(item))...)

	// Postgres 不支持 LastInsertId，通过 RETURNING 取回主键
	if w.dialect == dialect.Postgres && w.table.SetID != nil {
		ins.Returning(w.table.PrimaryKey)
		query, args := ins.Query()

		rows := &entSql.Rows{}
		if err := w.conn.Query(ctx, query, args, rows); err != nil {
			w.log.Errorf("create failed: %s", err.Error())
			return nil, fmt.Errorf("create failed: %w", err)
		}
		defer rows.Close()

		if rows.Next() {
			var id int64
			if err := rows.Scan(&id); err == nil {
				w.table.SetID(item, id)
			}
		}
		return item, nil
	}

	query, args := ins.Query()
	var res sql.Result
	if err := w.conn.Exec(ctx, query, args, &res); err != nil {
		w.log.Errorf("create failed: %s", err.Error())
		return nil, fmt.Errorf("create failed: %w", err)
	}

	if w.table.SetID != nil {
		if id, err := res.LastInsertId(); err == nil {
			w.table.SetID(item, id)
		}
	}
	return item, nil
}

func (w *writer[T, ID]) Delete(ctx context.Context, id ID) error {
	n, err := w.deleteWhere(ctx, entSql.EQ(w.table.PrimaryKey, argValue(id)))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %v", store.ErrNotFound, id)
	}
	return nil
}

// CreateBulk 逐条插入，以便写回每条记录的自增主键
func (w *writer[T, ID]) CreateBulk(ctx context.Context, items []*T) ([]*T, error) {
	out := make([]*T, 0, len(items))
	for _, item := range items {
		created, err := w.Create(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// DeleteBulk 任一 id 不存在时返回 store.ErrNotFound，不在事务中时自行开启事务
func (w *writer[T, ID]) DeleteBulk(ctx context.Context, ids []ID) error {
	if len(ids) == 0 {
		return nil
	}
	if w.inTx {
		return w.deleteIn(ctx, ids)
	}

	drv, ok := w.conn.(*entSql.Driver)
	if !ok {
		return w.deleteIn(ctx, ids)
	}
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}

	inner := *w
	inner.conn = tx
	inner.inTx = true
	if err = inner.deleteIn(ctx, ids); err != nil {
		return store.Rollback(tx, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (w *writer[T, ID]) deleteIn(ctx context.Context, ids []ID) error {
	values := make([]any, 0, len(ids))
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		values = append(values, argValue(id))
	}

	n, err := w.deleteWhere(ctx, entSql.In(w.table.PrimaryKey, values...))
	if err != nil {
		return err
	}
	if n != int64(len(values)) {
		return fmt.Errorf("%w: %d of %d ids deleted", store.ErrNotFound, n, len(values))
	}
	return nil
}

func (w *writer[T, ID]) deleteWhere(ctx context.Context, p *entSql.Predicate) (int64, error) {
	query, args := entSql.Dialect(w.dialect).Delete(w.table.Name).Where(p).Query()

	var res sql.Result
	if err := w.conn.Exec(ctx, query, args, &res); err != nil {
		w.log.Errorf("delete failed: %s", err.Error())
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read affected rows failed: %w", err)
	}
	return n, nil
}

// Tx ent 驱动事务，Commit 与 Rollback 只能调用一次
type Tx[T any, ID comparable] struct {
	writer[T, ID]

	tx   dialect.Tx
	done atomic.Bool
}

func (t *Tx[T, ID]) Commit() error {
	if t.done.Swap(true) {
		return store.ErrTxDone
	}
	if err := t.tx.Commit(); err != nil {
		t.log.Errorf("commit failed: %s", err.Error())
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Tx[T, ID]) Rollback() error {
	if t.done.Swap(true) {
		return store.ErrTxDone
	}
	if err := t.tx.Rollback(); err != nil {
		t.log.Errorf("rollback failed: %s", err.Error())
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}
