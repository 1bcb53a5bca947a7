package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tx7do/go-crud-guard/viewer"
)

func TestNewEntry_RequiresAuditingViewer(t *testing.T) {
	assert.Nil(t, NewEntry(context.Background(), "order", "batch_create", OpInsert))

	ctx := viewer.WithContext(context.Background(), &viewer.Viewer{User: 3, Tenant: 9, Name: "bob", Trace: "abc"})
	e := NewEntry(ctx, "order", "batch_create", OpInsert)
	require.NotNil(t, e)
	assert.Equal(t, uint64(3), e.UserID)
	assert.Equal(t, uint64(9), e.TenantID)
	assert.Equal(t, "abc", e.TraceID)
	assert.Equal(t, -1, e.Index)
	assert.False(t, e.Timestamp.IsZero())
}

func TestAuditorContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.NoError(t, MustFromContext(context.Background()).Record(context.Background(), &Entry{}))

	mem := NewMemoryAuditor()
	ctx := WithAuditor(context.Background(), mem)
	a, ok := FromContext(ctx)
	require.True(t, ok)

	require.NoError(t, a.Record(ctx, &Entry{Entity: "order", Extra: map[string]any{"k": 1}}))
	require.NoError(t, a.Record(ctx, nil))
	require.Len(t, mem.Entries(), 1)
	assert.Equal(t, "order", mem.Entries()[0].Entity)
}

func TestEntry_CloneAndPostValue(t *testing.T) {
	e := &Entry{Extra: map[string]any{"a": 1}}
	require.NoError(t, e.SetPostValue(map[string]int{"id": 5}))
	assert.JSONEq(t, `{"id":5}`, string(e.PostValue))

	c := e.Clone()
	c.Extra["a"] = 2
	assert.Equal(t, 1, e.Extra["a"])
}

func TestLogAuditor(t *testing.T) {
	a := NewLogAuditor(nil)
	assert.NoError(t, a.Record(context.Background(), &Entry{Entity: "order", Status: StatusFail}))
	assert.NoError(t, a.Record(context.Background(), nil))
	assert.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, "FAIL", StatusFail.String())
}
