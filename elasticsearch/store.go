package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cast"

	esapiV9 "github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/tx7do/go-crud-guard/predicate"
	"github.com/tx7do/go-crud-guard/store"
)

const defaultRefresh = "wait_for"

// Store 索引上的持久化实现。Elasticsearch 没有事务，Begin 总是返回 store.ErrTxUnsupported。
type Store[T any, ID comparable] struct {
	client  *Client
	index   string
	docID   func(item *T) string
	refresh string

	log *log.Helper
}

var _ store.Store[struct{}, string] = (*Store[struct{}, string])(nil)

// NewStore docID 从文档中取出 _id，返回空字符串时由服务端生成
func NewStore[T any, ID comparable](client *Client, index string, docID func(item *T) string, logger log.Logger) (*Store[T, ID], error) {
	if client == nil || client.Client == nil {
		return nil, ErrClientNotInitialized
	}
	if index == "" {
		return nil, errors.New("index is empty")
	}
	if docID == nil {
		return nil, errors.New("document id func is nil")
	}
	if logger == nil {
		logger = log.DefaultLogger
	}

	return &Store[T, ID]{
		client:  client,
		index:   index,
		docID:   docID,
		refresh: defaultRefresh,
		log:     log.NewHelper(log.With(logger, "module", "elasticsearch-store")),
	}, nil
}

// WithRefresh 设置写操作的 refresh 参数，默认 wait_for
func (s *Store[T, ID]) WithRefresh(refresh string) *Store[T, ID] {
	s.refresh = refresh
	return s
}

type searchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type bulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

func encodeBody(v any) (*bytes.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body failed: %w", err)
	}
	return bytes.NewReader(b), nil
}

func decodeBody(body io.Reader, out any) error {
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// Query 在同一个 DSL 查询上执行过滤、排序与分页
func (s *Store[T, ID]) Query(ctx context.Context, where predicate.Expr, orders []predicate.Order, offset, limit int) ([]*T, error) {
	q, err := BuildQuery(where)
	if err != nil {
		return nil, err
	}

	req := map[string]any{"query": q}
	if sort := BuildSort(orders); len(sort) > 0 {
		req["sort"] = sort
	}
	if limit > 0 {
		req["from"] = offset
		req["size"] = limit
	}

	body, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	es := s.client.Client
	resp, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(s.index),
		es.Search.WithBody(body),
	)
	if err != nil {
		s.log.Errorf("query list failed: %s", err.Error())
		return nil, fmt.Errorf("query list failed: %w", err)
	}
	defer s.client.closeBody(resp.Body)

	if resp.IsError() {
		return nil, s.client.responseError(resp, ErrSearchDocument)
	}

	var result searchResponse
	if err = decodeBody(resp.Body, &result); err != nil {
		s.log.Errorf("decode search result failed: %s", err.Error())
		return nil, err
	}

	items := make([]*T, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		item := new(T)
		if err = json.Unmarshal(hit.Source, item); err != nil {
			s.log.Errorf("decode document %s failed: %s", hit.ID, err.Error())
			return nil, fmt.Errorf("decode document %s failed: %w", hit.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Count 计算符合条件的文档数
func (s *Store[T, ID]) Count(ctx context.Context, where predicate.Expr) (int64, error) {
	q, err := BuildQuery(where)
	if err != nil {
		return 0, err
	}
	return s.count(ctx, q)
}

func (s *Store[T, ID]) count(ctx context.Context, q Query) (int64, error) {
	body, err := encodeBody(map[string]any{"query": q})
	if err != nil {
		return 0, err
	}

	es := s.client.Client
	resp, err := es.Count(
		es.Count.WithContext(ctx),
		es.Count.WithIndex(s.index),
		es.Count.WithBody(body),
	)
	if err != nil {
		s.log.Errorf("query count failed: %s", err.Error())
		return 0, fmt.Errorf("query count failed: %w", err)
	}
	defer s.client.closeBody(resp.Body)

	if resp.IsError() {
		return 0, s.client.responseError(resp, ErrCountDocument)
	}

	var result countResponse
	if err = decodeBody(resp.Body, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Begin Elasticsearch 不支持事务
func (s *Store[T, ID]) Begin(context.Context) (store.Tx[T, ID], error) {
	return nil, fmt.Errorf("elasticsearch: %w", store.ErrTxUnsupported)
}

func (s *Store[T, ID]) Create(ctx context.Context, item *T) (*T, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}

	body, err := encodeBody(item)
	if err != nil {
		return nil, err
	}

	es := s.client.Client
	var resp *esapiV9.Response
	if id := s.docID(item); id != "" {
		resp, err = es.Create(s.index, id, body,
			es.Create.WithContext(ctx),
			es.Create.WithRefresh(s.refresh),
		)
	} else {
		resp, err = es.Index(s.index, body,
			es.Index.WithContext(ctx),
			es.Index.WithRefresh(s.refresh),
		)
	}
	if err != nil {
		s.log.Errorf("create failed: %s", err.Error())
		return nil, fmt.Errorf("create failed: %w", err)
	}
	defer s.client.closeBody(resp.Body)

	if resp.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("%w: %s", ErrDocumentExists, s.docID(item))
	}
	if resp.IsError() {
		return nil, s.client.responseError(resp, ErrInsertDocument)
	}
	return item, nil
}

func (s *Store[T, ID]) docKey(id ID) (string, error) {
	key, err := cast.ToStringE(id)
	if err != nil {
		return "", fmt.Errorf("convert id %v to document id failed: %w", id, err)
	}
	if key == "" {
		return "", ErrMissingDocumentID
	}
	return key, nil
}

func (s *Store[T, ID]) Delete(ctx context.Context, id ID) error {
	key, err := s.docKey(id)
	if err != nil {
		return err
	}

	es := s.client.Client
	resp, err := es.Delete(s.index, key,
		es.Delete.WithContext(ctx),
		es.Delete.WithRefresh(s.refresh),
	)
	if err != nil {
		s.log.Errorf("delete failed: %s", err.Error())
		return fmt.Errorf("delete failed: %w", err)
	}
	defer s.client.closeBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: id %v", store.ErrNotFound, id)
	}
	if resp.IsError() {
		return s.client.responseError(resp, ErrDeleteDocument)
	}
	return nil
}

// bulk 执行批量请求；没有事务，失败时已成功的条目不会撤销
func (s *Store[T, ID]) bulk(ctx context.Context, action string, buf *bytes.Buffer) error {
	es := s.client.Client
	resp, err := es.Bulk(bytes.NewReader(buf.Bytes()),
		es.Bulk.WithContext(ctx),
		es.Bulk.WithIndex(s.index),
		es.Bulk.WithRefresh(s.refresh),
	)
	if err != nil {
		s.log.Errorf("bulk %s failed: %s", action, err.Error())
		return fmt.Errorf("bulk %s failed: %w", action, err)
	}
	defer s.client.closeBody(resp.Body)

	if resp.IsError() {
		return s.client.responseError(resp, ErrBulkDocument)
	}

	var result bulkResponse
	if err = decodeBody(resp.Body, &result); err != nil {
		return err
	}
	if !result.Errors {
		return nil
	}

	for i, entry := range result.Items {
		it, ok := entry[action]
		if !ok || it.Status < http.StatusMultipleChoices {
			continue
		}
		s.log.Warnf("bulk %s stopped at item %d, earlier items are kept", action, i)
		switch {
		case it.Status == http.StatusConflict:
			return fmt.Errorf("%w: item %d: %s", ErrDocumentExists, i, it.ID)
		case it.Status == http.StatusNotFound:
			return fmt.Errorf("%w: id %s", store.ErrNotFound, it.ID)
		case it.Error != nil:
			return fmt.Errorf("%w: item %d: %s: %s", ErrBulkDocument, i, it.Error.Type, it.Error.Reason)
		default:
			return fmt.Errorf("%w: item %d: status %d", ErrBulkDocument, i, it.Status)
		}
	}
	return fmt.Errorf("%w: errors reported without failed item", ErrBulkDocument)
}

func writeLine(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode bulk line failed: %w", err)
	}
	buf.Write(b)
	buf.WriteByte('\n')
	return nil
}

func (s *Store[T, ID]) CreateBulk(ctx context.Context, items []*T) ([]*T, error) {
	if len(items) == 0 {
		return []*T{}, nil
	}

	var buf bytes.Buffer
	for _, item := range items {
		if item == nil {
			return nil, errors.New("item is nil")
		}
		meta := map[string]any{}
		if id := s.docID(item); id != "" {
			meta["_id"] = id
		}
		if err := writeLine(&buf, map[string]any{"create": meta}); err != nil {
			return nil, err
		}
		if err := writeLine(&buf, item); err != nil {
			return nil, err
		}
	}

	if err := s.bulk(ctx, "create", &buf); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteBulk 先按 ids 计数，任一 id 不存在时不做删除并返回 store.ErrNotFound
func (s *Store[T, ID]) DeleteBulk(ctx context.Context, ids []ID) error {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		key, err := s.docKey(id)
		if err != nil {
			return err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	cnt, err := s.count(ctx, Query{"ids": Query{"values": keys}})
	if err != nil {
		return err
	}
	if cnt != int64(len(keys)) {
		return fmt.Errorf("%w: %d of %d ids found", store.ErrNotFound, cnt, len(keys))
	}

	var buf bytes.Buffer
	for _, key := range keys {
		if err = writeLine(&buf, map[string]any{"delete": map[string]any{"_id": key}}); err != nil {
			return err
		}
	}
	return s.bulk(ctx, "delete", &buf)
}
