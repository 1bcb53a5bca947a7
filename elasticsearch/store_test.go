package elasticsearch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tx7do/go-crud-guard/batch"
	"github.com/tx7do/go-crud-guard/errs"
	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/store"
)

type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// fakeServer 只实现测试用到的接口，文档按 _id 保存在内存中
type fakeServer struct {
	mu       sync.Mutex
	docs     map[string]json.RawMessage
	requests []string
	bodies   map[string]map[string]any
}

func newFakeServer(t *testing.T) (*fakeServer, *Client) {
	t.Helper()
	f := &fakeServer{docs: map[string]json.RawMessage{}, bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := NewClient(
		WithAddresses(srv.URL),
		WithRetry(0),
		WithLogger(log.NewStdLogger(io.Discard)),
	)
	require.NoError(t, err)
	return f, c
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	raw, _ := io.ReadAll(r.Body)
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"9.2.0"},"tagline":"You Know, for Search"}`)

	case len(parts) == 1 && r.Method == http.MethodHead:
		if parts[0] == "people" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}

	case len(parts) == 2 && parts[1] == "_search":
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		f.bodies["search"] = body

		ids := f.sortedIDs()
		hits := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			hits = append(hits, map[string]any{"_id": id, "_source": f.docs[id]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})

	case len(parts) == 2 && parts[1] == "_count":
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		f.bodies["count"] = body
		_ = json.NewEncoder(w).Encode(map[string]any{"count": f.count(body)})

	case len(parts) == 3 && parts[1] == "_create":
		if _, ok := f.docs[parts[2]]; ok {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":{"type":"version_conflict_engine_exception","reason":"document already exists"},"status":409}`)
			return
		}
		f.docs[parts[2]] = raw
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)

	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodDelete:
		if _, ok := f.docs[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		delete(f.docs, parts[2])
		_, _ = io.WriteString(w, `{"result":"deleted"}`)

	case len(parts) == 2 && parts[1] == "_bulk":
		_ = json.NewEncoder(w).Encode(f.bulk(raw))

	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"illegal_argument_exception","reason":"unexpected request"},"status":400}`)
	}
}

func (f *fakeServer) sortedIDs() []string {
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeServer) count(body map[string]any) int {
	q, _ := body["query"].(map[string]any)
	ids, ok := q["ids"].(map[string]any)
	if !ok {
		return len(f.docs)
	}
	n := 0
	values, _ := ids["values"].([]any)
	for _, v := range values {
		if _, exists := f.docs[v.(string)]; exists {
			n++
		}
	}
	return n
}

func (f *fakeServer) bulk(raw []byte) map[string]any {
	var items []map[string]any
	failed := false

	sc := bufio.NewScanner(strings.NewReader(string(raw)))
	for sc.Scan() {
		var action map[string]map[string]any
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil {
			continue
		}
		for name, meta := range action {
			id, _ := meta["_id"].(string)
			status := http.StatusOK
			switch name {
			case "create":
				sc.Scan()
				if _, ok := f.docs[id]; ok {
					status = http.StatusConflict
				} else {
					f.docs[id] = append(json.RawMessage(nil), sc.Bytes()...)
					status = http.StatusCreated
				}
			case "delete":
				if _, ok := f.docs[id]; ok {
					delete(f.docs, id)
				} else {
					status = http.StatusNotFound
				}
			}
			if status >= http.StatusMultipleChoices {
				failed = true
			}
			items = append(items, map[string]any{name: map[string]any{"_id": id, "status": status}})
		}
	}
	return map[string]any{"errors": failed, "items": items}
}

func newPersonStore(t *testing.T, c *Client) *Store[Person, string] {
	t.Helper()
	s, err := NewStore[Person, string](c, "people", func(p *Person) string { return p.ID }, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return s
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore[Person, string](nil, "people", func(p *Person) string { return p.ID }, nil)
	assert.ErrorIs(t, err, ErrClientNotInitialized)

	_, c := newFakeServer(t)
	_, err = NewStore[Person, string](c, "", func(p *Person) string { return p.ID }, nil)
	assert.Error(t, err)
	_, err = NewStore[Person, string](c, "people", nil, nil)
	assert.Error(t, err)
}

func TestClient_IndexAndInfo(t *testing.T) {
	_, c := newFakeServer(t)
	ctx := context.Background()

	version, err := c.CheckConnectStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9.2.0", version)

	ok, err := c.IndexExists(ctx, "people")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IndexExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, c.CreateIndex(ctx, "people", "", ""), ErrIndexAlreadyExists)
	assert.ErrorIs(t, c.DeleteIndex(ctx, "missing"), ErrIndexNotFound)
}

func TestMergeOptions(t *testing.T) {
	body, err := MergeOptions(`{"properties":{"name":{"type":"keyword"}}}`, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mappings":{"properties":{"name":{"type":"keyword"}}}}`, body)

	_, err = MergeOptions("{", "")
	assert.Error(t, err)
}

func TestStore_CreateQueryCount(t *testing.T) {
	f, c := newFakeServer(t)
	s := newPersonStore(t, c)
	ctx := context.Background()

	_, err := s.Create(ctx, &Person{ID: "p1", Name: "ann", Age: 31})
	require.NoError(t, err)
	_, err = s.Create(ctx, &Person{ID: "p2", Name: "bob", Age: 40})
	require.NoError(t, err)

	_, err = s.Create(ctx, &Person{ID: "p1", Name: "dup"})
	assert.ErrorIs(t, err, ErrDocumentExists)

	items, err := s.Query(ctx, nil, []predicate.Order{{Path: "age", Desc: true}}, 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ann", items[0].Name)

	search := f.bodies["search"]
	assert.Equal(t, float64(10), search["size"])
	assert.Equal(t, float64(0), search["from"])
	assert.Equal(t, []any{map[string]any{"age": map[string]any{"order": "desc"}}}, search["sort"])

	total, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, f.bodies["count"]["query"])
}

func TestStore_DeleteAndDeleteBulk(t *testing.T) {
	f, c := newFakeServer(t)
	s := newPersonStore(t, c)
	ctx := context.Background()

	_, err := s.CreateBulk(ctx, []*Person{{ID: "a", Name: "a"}, {ID: "b", Name: "b"}, {ID: "c", Name: "c"}})
	require.NoError(t, err)
	assert.Len(t, f.docs, 3)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Delete(ctx, "a"), store.ErrNotFound)

	err = s.DeleteBulk(ctx, []string{"b", "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, f.docs, 2, "nothing deleted when an id is missing")

	require.NoError(t, s.DeleteBulk(ctx, []string{"b", "c", "b"}))
	assert.Empty(t, f.docs)
}

func TestStore_CreateBulkConflict(t *testing.T) {
	_, c := newFakeServer(t)
	s := newPersonStore(t, c)
	ctx := context.Background()

	_, err := s.Create(ctx, &Person{ID: "b", Name: "b"})
	require.NoError(t, err)

	_, err = s.CreateBulk(ctx, []*Person{{ID: "a"}, {ID: "b"}})
	assert.ErrorIs(t, err, ErrDocumentExists)
}

func TestStore_BatchExecutor(t *testing.T) {
	_, c := newFakeServer(t)
	s := newPersonStore(t, c)
	ctx := context.Background()

	_, err := s.Begin(ctx)
	assert.ErrorIs(t, err, store.ErrTxUnsupported)

	exec := batch.NewExecutor[Person, string]("person", s, batch.WithLogger(log.NewStdLogger(io.Discard)))
	people := []*Person{{ID: "x", Name: "x"}, {ID: "y", Name: "y"}}

	_, err = exec.Create(ctx, people, batch.Options{Atomic: true}).Await(ctx)
	var boe *errs.BatchOperationError
	require.ErrorAs(t, err, &boe)
	assert.ErrorIs(t, err, store.ErrTxUnsupported)

	results, err := exec.Create(ctx, append(people, &Person{ID: "x"}), batch.Options{}).Await(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Succeeded())
	assert.True(t, results[1].Succeeded())
	assert.False(t, results[2].Succeeded())
}
