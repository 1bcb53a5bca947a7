package store

import (
	"errors"
	"testing"
)

type fakeTx struct {
	err    error
	called bool
}

func (f *fakeTx) Rollback() error {
	f.called = true
	return f.err
}

func TestRollback(t *testing.T) {
	cause := errors.New("insert failed")

	tx := &fakeTx{}
	if err := Rollback(tx, cause); !errors.Is(err, cause) || !tx.called {
		t.Fatalf("expected cause to be returned after rollback, got %v", err)
	}

	tx = &fakeTx{err: errors.New("conn closed")}
	err := Rollback(tx, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if err.Error() != "insert failed: rollback failed: conn closed" {
		t.Fatalf("unexpected message: %s", err.Error())
	}

	if err = Rollback(&fakeTx{err: ErrTxDone}, nil); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected rollback error when cause is nil, got %v", err)
	}
}
