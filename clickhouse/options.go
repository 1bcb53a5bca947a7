package clickhouse

import (
	"crypto/tls"
	"time"

	clickhouseV2 "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/tx7do/go-crud-guard/config"
)

var compressionMap = map[string]clickhouseV2.CompressionMethod{
	"none":    clickhouseV2.CompressionNone,
	"zstd":    clickhouseV2.CompressionZSTD,
	"lz4":     clickhouseV2.CompressionLZ4,
	"lz4hc":   clickhouseV2.CompressionLZ4HC,
	"gzip":    clickhouseV2.CompressionGZIP,
	"deflate": clickhouseV2.CompressionDeflate,
	"br":      clickhouseV2.CompressionBrotli,
}

var openStrategyMap = map[string]clickhouseV2.ConnOpenStrategy{
	"in_order":    clickhouseV2.ConnOpenInOrder,
	"round_robin": clickhouseV2.ConnOpenRoundRobin,
	"random":      clickhouseV2.ConnOpenRandom,
}

// Option 修改 ClickHouse 连接参数，按传入顺序生效
type Option func(o *Client)

func WithLogger(logger log.Logger) Option {
	return func(o *Client) {
		o.logger = log.NewHelper(log.With(logger, "module", "clickhouse-client"))
	}
}

// WithConfig 从数据库配置读取 DSN、调试开关与连接池参数。
// DSN 会整体替换之前设置的连接参数，因此应放在其它选项之前。
func WithConfig(cfg config.DatabaseConfig) Option {
	return func(o *Client) {
		if cfg.DSN != "" {
			WithDsn(cfg.DSN)(o)
			if o.optErr != nil {
				return
			}
		}

		if cfg.Debug {
			o.options.Debug = true
		}
		if cfg.MaxOpenConns > 0 {
			o.options.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			o.options.MaxIdleConns = cfg.MaxIdleConns
		}
		if cfg.ConnMaxLifetime > 0 {
			o.options.ConnMaxLifetime = cfg.ConnMaxLifetime
		}
	}
}

// WithDsn 解析 DSN 替换全部连接参数，解析失败时在 NewClient 中返回错误
func WithDsn(dsn string) Option {
	return func(o *Client) {
		parsed, err := clickhouseV2.ParseDSN(dsn)
		if err != nil {
			o.optErr = err
			return
		}
		o.options = parsed
	}
}

// WithScheme http/https 走 HTTP 协议，其余走原生 TCP 协议
func WithScheme(scheme string) Option {
	return func(o *Client) {
		if scheme == "http" || scheme == "https" {
			o.options.Protocol = clickhouseV2.HTTP
			return
		}
		o.options.Protocol = clickhouseV2.Native
	}
}

func WithAddresses(addresses ...string) Option {
	return func(o *Client) {
		o.options.Addr = addresses
	}
}

func WithUsername(username string) Option {
	return func(o *Client) {
		o.options.Auth.Username = username
	}
}

func WithPassword(password string) Option {
	return func(o *Client) {
		o.options.Auth.Password = password
	}
}

func WithDatabase(database string) Option {
	return func(o *Client) {
		o.options.Auth.Database = database
	}
}

func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(o *Client) {
		o.options.TLS = tlsConfig
	}
}

func WithDialTimeout(dialTimeout time.Duration) Option {
	return func(o *Client) {
		o.options.DialTimeout = dialTimeout
	}
}

// WithCompressionMethod 未知的压缩算法保持原设置
func WithCompressionMethod(method string) Option {
	return func(o *Client) {
		m, ok := compressionMap[method]
		if !ok {
			return
		}
		if o.options.Compression == nil {
			o.options.Compression = &clickhouseV2.Compression{}
		}
		o.options.Compression.Method = m
	}
}

// WithConnectionOpenStrategy 未知的策略按 in_order 处理
func WithConnectionOpenStrategy(strategy string) Option {
	return func(o *Client) {
		s, ok := openStrategyMap[strategy]
		if !ok {
			s = clickhouseV2.ConnOpenInOrder
		}
		o.options.ConnOpenStrategy = s
	}
}
