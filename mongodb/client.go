package mongodb

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	mongoV2 "go.mongodb.org/mongo-driver/v2/mongo"
	optionsV2 "go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Client struct {
	log *log.Helper

	cli      *mongoV2.Client
	database string
	timeout  time.Duration
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{}

	var opt options
	for _, o := range opts {
		o(&opt)
	}

	if opt.Logger != nil {
		c.log = opt.Logger
	} else {
		c.log = log.NewHelper(log.With(log.DefaultLogger, "module", "mongodb-client"))
	}

	if err := c.createMongodbClient(&opt); err != nil {
		return nil, err
	}

	return c, nil
}

// createMongodbClient 创建MongoDB客户端
func (c *Client) createMongodbClient(opt *options) error {
	var opts []*optionsV2.ClientOptions

	if opt.URI != "" {
		opts = append(opts, optionsV2.Client().ApplyURI(opt.URI))
	}
	if opt.Username != "" && opt.Password != "" {
		credential := optionsV2.Credential{
			Username: opt.Username,
			Password: opt.Password,
		}

		if opt.Password != "" {
			credential.PasswordSet = true
		}

		opts = append(opts, optionsV2.Client().SetAuth(credential))
	}
	if opt.ConnectTimeout != nil {
		opts = append(opts, optionsV2.Client().SetConnectTimeout(*opt.ConnectTimeout))
	}
	if opt.ServerSelectionTimeout != nil {
		opts = append(opts, optionsV2.Client().SetServerSelectionTimeout(*opt.ServerSelectionTimeout))
	}
	if opt.Timeout != nil {
		opts = append(opts, optionsV2.Client().SetTimeout(*opt.Timeout))
	}

	opts = append(opts, optionsV2.Client().SetBSONOptions(&optionsV2.BSONOptions{
		UseJSONStructTags: true, // 使用JSON结构标签
	}))

	cli, err := mongoV2.Connect(opts...)
	if err != nil {
		c.log.Errorf("failed to create mongodb client: %v", err)
		return err
	}

	c.database = opt.Database
	if opt.Timeout != nil {
		c.timeout = *opt.Timeout
	} else {
		c.timeout = 10 * time.Second // 默认超时时间
	}

	c.cli = cli

	return nil
}

// Close 关闭MongoDB客户端
func (c *Client) Close() {
	if c.cli == nil {
		c.log.Warn("mongodb client is already closed or not initialized")
		return
	}

	if err := c.cli.Disconnect(context.Background()); err != nil {
		c.log.Errorf("failed to disconnect mongodb client: %v", err)
	} else {
		c.log.Info("mongodb client disconnected successfully")
	}
	c.cli = nil
}

// CheckConnect 检查MongoDB连接状态
func (c *Client) CheckConnect() bool {
	if c.cli == nil {
		c.log.Errorf("mongodb client is not initialized")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.cli.Ping(ctx, nil); err != nil {
		c.log.Errorf("failed to ping mongodb: %v", err)
		return false
	}

	c.log.Info("mongodb client is connected")
	return true
}

// Database 返回配置的数据库
func (c *Client) Database() *mongoV2.Database {
	if c.cli == nil {
		return nil
	}
	return c.cli.Database(c.database)
}

// Collection 返回配置数据库中的集合
func (c *Client) Collection(name string) *mongoV2.Collection {
	if c.cli == nil {
		return nil
	}
	return c.cli.Database(c.database).Collection(name)
}

// StartSession 开启会话，用于多文档事务（需要副本集或分片集群）
func (c *Client) StartSession() (*mongoV2.Session, error) {
	if c.cli == nil {
		c.log.Errorf("mongodb client is not initialized")
		return nil, mongoV2.ErrClientDisconnected
	}
	return c.cli.StartSession()
}

// Timeout 单次操作超时
func (c *Client) Timeout() time.Duration {
	return c.timeout
}
