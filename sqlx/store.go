package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/store"
)

// Table 描述实体与数据表之间的映射
type Table[T any] struct {
	Name       string
	PrimaryKey string
	// Columns 查询列，顺序与 Scan 一致
	Columns []string
	// InsertColumns 插入列，顺序与 Values 一致
	InsertColumns []string

	Values func(item *T) []any
	Scan   func(row sq.RowScanner) (*T, error)
	// SetID 写回自增主键，为 nil 时忽略
	SetID func(item *T, id int64)
}

func (t Table[T]) validate() error {
	switch {
	case t.Name == "":
		return errors.New("table name is empty")
	case t.PrimaryKey == "":
		return errors.New("primary key is empty")
	case len(t.Columns) == 0 || t.Scan == nil:
		return errors.New("table columns or scan func missing")
	case len(t.InsertColumns) == 0 || t.Values == nil:
		return errors.New("table insert columns or values func missing")
	}
	return nil
}

// conn *sql.DB 与 *sql.Tx 的公共部分
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type writer[T any, ID comparable] struct {
	conn    conn
	table   Table[T]
	dialect Dialect
	inTx    bool
	log     *log.Helper
}

// Store 基于 database/sql 与 squirrel 的持久化实现
type Store[T any, ID comparable] struct {
	writer[T, ID]

	db *sql.DB
}

var _ store.Store[struct{}, int64] = (*Store[struct{}, int64])(nil)

func NewStore[T any, ID comparable](db *sql.DB, dialect Dialect, table Table[T], logger log.Logger) (*Store[T, ID], error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DefaultLogger
	}

	return &Store[T, ID]{
		writer: writer[T, ID]{
			conn:    db,
			table:   table,
			dialect: dialect,
			log:     log.NewHelper(log.With(logger, "module", "sqlx-store")),
		},
		db: db,
	}, nil
}

func (w *writer[T, ID]) quotedColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, w.dialect.QuoteIdent(c))
	}
	return out
}

func (w *writer[T, ID]) selectBuilder(where predicate.Expr, columns ...string) (sq.SelectBuilder, error) {
	b := w.dialect.builder().Select(columns...).From(w.dialect.QuoteIdent(w.table.Name))

	pred, err := w.dialect.BuildWhere(where)
	if err != nil {
		return b, err
	}
	if pred != nil {
		b = b.Where(pred)
	}
	return b, nil
}

// Query 使用同一谓词执行过滤、排序与分页
func (s *Store[T, ID]) Query(ctx context.Context, where predicate.Expr, orders []predicate.Order, offset, limit int) ([]*T, error) {
	b, err := s.selectBuilder(where, s.quotedColumns(s.table.Columns)...)
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		b = b.OrderBy(s.dialect.BuildOrderBy(orders)...)
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
		if offset > 0 {
			b = b.Offset(uint64(offset))
		}
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Errorf("query list failed: %s", err.Error())
		return nil, fmt.Errorf("query list failed: %w", err)
	}
	defer rows.Close()

	items := make([]*T, 0)
	for rows.Next() {
		item, err := s.table.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row failed: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		s.log.Errorf("query list failed: %s", err.Error())
		return nil, fmt.Errorf("query list failed: %w", err)
	}
	return items, nil
}

// Count 计算符合条件的记录数
func (s *Store[T, ID]) Count(ctx context.Context, where predicate.Expr) (int64, error) {
	b, err := s.selectBuilder(where, "COUNT(*)")
	if err != nil {
		return 0, err
	}

	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}

	var cnt int64
	if err = s.conn.QueryRowContext(ctx, query, args...).Scan(&cnt); err != nil {
		s.log.Errorf("query count failed: %s", err.Error())
		return 0, fmt.Errorf("query count failed: %w", err)
	}
	return cnt, nil
}

// Begin 开启事务；方言不支持事务时返回 store.ErrTxUnsupported
func (s *Store[T, ID]) Begin(ctx context.Context) (store.Tx[T, ID], error) {
	if !s.dialect.Transactions {
		return nil, fmt.Errorf("%s: %w", s.dialect.Name, store.ErrTxUnsupported)
	}

	tx, err := s.db.BeginTx(ctx, nil)
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

	query, args, err := w.dialect.builder().
		Insert(w.dialect.QuoteIdent(w.table.Name)).
		Columns(w.quotedColumns(w.table.InsertColumns)...).
		Values(sqlValues(w.table.Values(item))...).
		ToSql()
	if err != nil {
		return nil, err
	}

	res, err := w.conn.ExecContext(ctx, query, args...)
	if err != nil {
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
	pred := sq.Eq{w.dialect.QuoteIdent(w.table.PrimaryKey): sqlValue(id)}

	if !w.dialect.RowsAffected {
		n, err := w.countWhere(ctx, pred)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: id %v", store.ErrNotFound, id)
		}
		_, err = w.deleteWhere(ctx, pred)
		return err
	}

	n, err := w.deleteWhere(ctx, pred)
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

	if w.inTx || !w.dialect.Transactions {
		return w.deleteIn(ctx, ids)
	}

	db, ok := w.conn.(*sql.DB)
	if !ok {
		return w.deleteIn(ctx, ids)
	}
	tx, err := db.BeginTx(ctx, nil)
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
		values = append(values, sqlValue(id))
	}

	pred := sq.Eq{w.dialect.QuoteIdent(w.table.PrimaryKey): values}

	if !w.dialect.RowsAffected {
		n, err := w.countWhere(ctx, pred)
		if err != nil {
			return err
		}
		if n != int64(len(values)) {
			return fmt.Errorf("%w: %d of %d ids exist", store.ErrNotFound, n, len(values))
		}
		_, err = w.deleteWhere(ctx, pred)
		return err
	}

	n, err := w.deleteWhere(ctx, pred)
	if err != nil {
		return err
	}
	if n != int64(len(values)) {
		return fmt.Errorf("%w: %d of %d ids deleted", store.ErrNotFound, n, len(values))
	}
	return nil
}

func (w *writer[T, ID]) countWhere(ctx context.Context, pred sq.Sqlizer) (int64, error) {
	query, args, err := w.dialect.builder().
		Select("COUNT(*)").
		From(w.dialect.QuoteIdent(w.table.Name)).
		Where(pred).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	if err = w.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		w.log.Errorf("query count failed: %s", err.Error())
		return 0, fmt.Errorf("query count failed: %w", err)
	}
	return n, nil
}

func (w *writer[T, ID]) deleteWhere(ctx context.Context, pred sq.Sqlizer) (int64, error) {
	query, args, err := w.dialect.builder().
		Delete(w.dialect.QuoteIdent(w.table.Name)).
		Where(pred).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := w.conn.ExecContext(ctx, query, args...)
	if err != nil {
		w.log.Errorf("delete failed: %s", err.Error())
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read affected rows failed: %w", err)
	}
	return n, nil
}

// Tx database/sql 事务，Commit 与 Rollback 只能调用一次
type Tx[T any, ID comparable] struct {
	writer[T, ID]

	tx   *sql.Tx
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
