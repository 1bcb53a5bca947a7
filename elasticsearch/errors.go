package elasticsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrClientNotInitialized = errors.New("elasticsearch client not initialized")

	ErrIndexAlreadyExists = errors.New("index already exists")
	ErrIndexNotFound      = errors.New("index not found")
	ErrCreateIndex        = errors.New("create index failed")
	ErrDeleteIndex        = errors.New("delete index failed")

	ErrDocumentExists    = errors.New("document already exists")
	ErrInsertDocument    = errors.New("insert document failed")
	ErrBulkDocument      = errors.New("bulk request failed")
	ErrDeleteDocument    = errors.New("delete document failed")
	ErrSearchDocument    = errors.New("search document failed")
	ErrCountDocument     = errors.New("count document failed")
	ErrInvalidResponse   = errors.New("invalid elasticsearch response")
	ErrMissingDocumentID = errors.New("document id is empty")
)

// ErrorResponse Elasticsearch 返回的错误体
type ErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

func (e *ErrorResponse) String() string {
	if e == nil {
		return ""
	}
	if e.Error.Type == "" {
		return e.Error.Reason
	}
	return e.Error.Type + ": " + e.Error.Reason
}

// ParseErrorMessage 解析错误体
func ParseErrorMessage(body io.Reader) (*ErrorResponse, error) {
	var errResp ErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &errResp, nil
}

// MergeOptions 合并 mappings 与 settings 为建索引的请求体，空字符串表示不设置
func MergeOptions(mapping, settings string) (string, error) {
	body := map[string]json.RawMessage{}

	if mapping != "" {
		if !json.Valid([]byte(mapping)) {
			return "", errors.New("mapping is not valid json")
		}
		body["mappings"] = json.RawMessage(mapping)
	}
	if settings != "" {
		if !json.Valid([]byte(settings)) {
			return "", errors.New("settings is not valid json")
		}
		body["settings"] = json.RawMessage(settings)
	}

	out, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
