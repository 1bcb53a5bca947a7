package sqlx

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tx7do/go-crud-guard/pagination/sorting"
	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/store"
)

type user struct {
	ID   int64
	Name string
	Age  int
}

var userTable = Table[user]{
	Name:          "users",
	PrimaryKey:    "id",
	Columns:       []string{"id", "name", "age"},
	InsertColumns: []string{"name", "age"},
	Values:        func(u *user) []any { return []any{u.Name, u.Age} },
	Scan: func(row sq.RowScanner) (*user, error) {
		var u user
		if err := row.Scan(&u.ID, &u.Name, &u.Age); err != nil {
			return nil, err
		}
		return &u, nil
	},
	SetID: func(u *user, id int64) { u.ID = id },
}

func newMockStore(t *testing.T) (*Store[user, int64], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewStore[user, int64](db, MySQL, userTable, nil)
	require.NoError(t, err)
	return s, mock
}

func TestNewStore_InvalidTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewStore[user, int64](db, MySQL, Table[user]{Name: "users"}, nil)
	assert.Error(t, err)

	_, err = NewStore[user, int64](nil, MySQL, userTable, nil)
	assert.Error(t, err)
}

func TestStore_Query(t *testing.T) {
	s, mock := newMockStore(t)

	sortSpec, err := sorting.NewBinder(newTestCatalog()).Bind("user", map[string][]string{"sort": {"-age"}})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "name", "age"}).
		AddRow(3, "carol", 40).
		AddRow(2, "bob", 30)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `age` FROM `users` WHERE `age` >= ? ORDER BY `age` DESC LIMIT 2 OFFSET 2")).
		WithArgs(int64(18)).
		WillReturnRows(rows)

	items, err := s.Query(context.Background(),
		compileWhere(t, map[string][]string{"age__gte": {"18"}}),
		predicate.CompileSort(sortSpec), 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "carol", items[0].Name)
	assert.Equal(t, int64(2), items[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryEmptyAndCount(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `age` FROM `users` LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, err := s.Query(context.Background(), nil, nil, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	n, err := s.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	_, err := s.Query(context.Background(), nil, nil, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_CreateAndDelete(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users` (`name`,`age`) VALUES (?,?)")).
		WithArgs("alice", 30).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `users` WHERE `id` = ?")).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `users` WHERE `id` = ?")).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	u, err := s.Create(ctx, &user{Name: "alice", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(11), u.ID)

	require.NoError(t, s.Delete(ctx, 11))
	assert.ErrorIs(t, s.Delete(ctx, 11), store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteBulkRollsBackOnMissingID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `users` WHERE `id` IN (?,?,?)")).
		WithArgs(int64(1), int64(2), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	err := s.DeleteBulk(context.Background(), []int64{1, 2, 2, 4})
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_TxCommitOnce(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users`")).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `users` WHERE `id` IN (?,?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	created, err := tx.CreateBulk(ctx, []*user{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, int64(2), created[1].ID)

	require.NoError(t, tx.DeleteBulk(ctx, []int64{1, 2}))
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), store.ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), store.ErrTxDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ClickHouseDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore[user, int64](db, ClickHouse, userTable, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, store.ErrTxUnsupported)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `users` WHERE `id` = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `users` WHERE `id` = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Delete(ctx, 7))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `users` WHERE `id` IN (?,?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	err = s.DeleteBulk(ctx, []int64{1, 2})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
