package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kratos/kratos/v2/log"

	elasticsearchV9 "github.com/elastic/go-elasticsearch/v9"
	esapiV9 "github.com/elastic/go-elasticsearch/v9/esapi"
)

type Client struct {
	*elasticsearchV9.Client
	options *elasticsearchV9.Config

	log *log.Helper
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		options: &elasticsearchV9.Config{},
		log:     log.NewHelper(log.With(log.DefaultLogger, "module", "elasticsearch-client")),
	}

	for _, o := range opts {
		o(c)
	}

	if err := c.createESClient(c.options); err != nil {
		return nil, err
	}

	return c, nil
}

// createESClient 创建Elasticsearch客户端
func (c *Client) createESClient(options *elasticsearchV9.Config) error {
	cli, err := elasticsearchV9.NewClient(*options)
	if err != nil {
		c.log.Errorf("failed to create elasticsearch client: %v", err)
		return err
	}

	c.Client = cli

	return nil
}

func (c *Client) Close() {
	if c == nil || c.Client == nil {
		return
	}
	if tr, ok := c.options.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}

func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.log.Errorf("failed to close response body: %v", err)
	}
}

// responseError 把错误响应转换为 sentinel 错误，附带服务端给出的原因
func (c *Client) responseError(resp *esapiV9.Response, sentinel error) error {
	errResp, err := ParseErrorMessage(resp.Body)
	if err != nil {
		c.log.Errorf("failed to parse error message: %v", err)
		return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
	}
	c.log.Errorf("%s: %s", sentinel.Error(), errResp.String())
	return fmt.Errorf("%w: %s", sentinel, errResp.String())
}

// CheckConnectStatus 检查Elasticsearch连接，返回服务端版本
func (c *Client) CheckConnectStatus(ctx context.Context) (string, error) {
	if c == nil || c.Client == nil {
		return "", ErrClientNotInitialized
	}

	resp, err := c.Client.Info(c.Client.Info.WithContext(ctx))
	if err != nil {
		c.log.Errorf("failed to connect to elasticsearch: %v", err)
		return "", err
	}
	defer c.closeBody(resp.Body)

	if resp.IsError() {
		c.log.Errorf("Error: %s", resp.String())
		return "", fmt.Errorf("%w: %s", ErrInvalidResponse, resp.Status())
	}

	var r struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&r); err != nil {
		c.log.Errorf("Error parsing the response body: %s", err)
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	c.log.Infof("Client Version: %s", elasticsearchV9.Version)
	c.log.Infof("Server Version: %s", r.Version.Number)

	return r.Version.Number, nil
}

// IndexExists 检查索引是否存在
func (c *Client) IndexExists(ctx context.Context, indexName string) (bool, error) {
	resp, err := c.Client.Indices.Exists(
		[]string{indexName},
		c.Client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		c.log.Errorf("failed to check if index exists: %v", err)
		return false, err
	}
	defer c.closeBody(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}
}

// CreateIndex 创建一条索引
//
//	如果mapping为空("")则表示不创建模型
func (c *Client) CreateIndex(ctx context.Context, indexName string, mapping, settings string) error {
	exist, err := c.IndexExists(ctx, indexName)
	if err != nil {
		return err
	}
	if exist {
		return ErrIndexAlreadyExists
	}

	body, err := MergeOptions(mapping, settings)
	if err != nil {
		c.log.Errorf("failed to merge options: %v", err)
		return err
	}

	resp, err := c.Client.Indices.Create(
		indexName,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(bytes.NewReader([]byte(body))),
	)
	if err != nil {
		c.log.Errorf("failed to create index: %v", err)
		return err
	}
	defer c.closeBody(resp.Body)

	if resp.IsError() {
		return c.responseError(resp, ErrCreateIndex)
	}

	return nil
}

// DeleteIndex 删除一条索引
func (c *Client) DeleteIndex(ctx context.Context, indexName string) error {
	exist, err := c.IndexExists(ctx, indexName)
	if err != nil {
		return err
	}
	if !exist {
		return ErrIndexNotFound
	}

	resp, err := c.Client.Indices.Delete(
		[]string{indexName},
		c.Client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		c.log.Errorf("failed to delete index: %v", err)
		return err
	}
	defer c.closeBody(resp.Body)

	if resp.IsError() {
		return c.responseError(resp, ErrDeleteIndex)
	}

	return nil
}
