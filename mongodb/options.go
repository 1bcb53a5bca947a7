package mongodb

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

type options struct {
	URI      string
	Database string

	Username string
	Password string

	ConnectTimeout         *time.Duration
	ServerSelectionTimeout *time.Duration
	Timeout                *time.Duration

	Logger *log.Helper
}

type Option func(o *options)

func WithURI(uri string) Option {
	return func(o *options) { o.URI = uri }
}

func WithDatabase(database string) Option {
	return func(o *options) { o.Database = database }
}

func WithCredential(username, password string) Option {
	return func(o *options) {
		o.Username = username
		o.Password = password
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.ConnectTimeout = &d }
}

func WithServerSelectionTimeout(d time.Duration) Option {
	return func(o *options) { o.ServerSelectionTimeout = &d }
}

// WithTimeout 单次操作超时，默认 10 秒
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.Timeout = &d }
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.Logger = log.NewHelper(log.With(logger, "module", "mongodb-client"))
		}
	}
}
