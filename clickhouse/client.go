package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	clickhouseV2 "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/tx7do/go-crud-guard/sqlx"
)

var (
	ErrClientNotInitialized = errors.New("clickhouse client not initialized")
	ErrPingFailed           = errors.New("clickhouse ping failed")
)

// Client ClickHouse 的 database/sql 连接。连接在第一次使用时建立。
type Client struct {
	db      *sql.DB
	options *clickhouseV2.Options
	optErr  error

	logger *log.Helper
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		options: &clickhouseV2.Options{},
	}

	for _, o := range opts {
		o(c)
	}

	if c.logger == nil {
		c.logger = log.NewHelper(log.With(log.DefaultLogger, "module", "clickhouse-client"))
	}
	if c.optErr != nil {
		c.logger.Errorf("invalid clickhouse options: %s", c.optErr.Error())
		return nil, fmt.Errorf("invalid clickhouse options: %w", c.optErr)
	}
	if c.options.Debug && c.options.Debugf == nil {
		c.options.Debugf = c.logger.Debugf
	}

	c.db = clickhouseV2.OpenDB(c.options)

	return c, nil
}

// DB 返回底层连接池
func (c *Client) DB() *sql.DB { return c.db }

// Options 返回生效的连接参数
func (c *Client) Options() *clickhouseV2.Options { return c.options }

// Close 关闭ClickHouse客户端连接
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		c.logger.Errorf("failed to close clickhouse client: %v", err)
		return err
	}
	return nil
}

// CheckConnection 检查ClickHouse客户端连接是否正常
func (c *Client) CheckConnection(ctx context.Context) error {
	if c == nil || c.db == nil {
		return ErrClientNotInitialized
	}

	if err := c.db.PingContext(ctx); err != nil {
		c.logger.Errorf("ping failed: %v", err)
		return fmt.Errorf("%w: %v", ErrPingFailed, err)
	}
	return nil
}

// ServerVersion 查询服务端版本
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	if c == nil || c.db == nil {
		return "", ErrClientNotInitialized
	}

	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		c.logger.Errorf("failed to get server version: %v", err)
		return "", err
	}
	return version, nil
}

// NewStore 基于 ClickHouse 方言创建数据表存储。
// ClickHouse 不支持事务，原子批量操作会在开启事务时失败。
func NewStore[T any, ID comparable](c *Client, table sqlx.Table[T], logger log.Logger) (*sqlx.Store[T, ID], error) {
	if c == nil || c.db == nil {
		return nil, ErrClientNotInitialized
	}
	return sqlx.NewStore[T, ID](c.db, sqlx.ClickHouse, table, logger)
}
