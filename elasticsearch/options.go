package elasticsearch

import (
	"crypto/tls"
	"net/http"

	"github.com/go-kratos/kratos/v2/log"
)

// Option 修改 Elasticsearch 客户端配置，按传入顺序生效
type Option func(o *Client)

func WithAddresses(addresses ...string) Option {
	return func(o *Client) {
		o.options.Addresses = addresses
	}
}

// WithBasicAuth 用户名密码认证
func WithBasicAuth(username, password string) Option {
	return func(o *Client) {
		o.options.Username = username
		o.options.Password = password
	}
}

// WithAPIKey Base64 编码的 API Key 认证
func WithAPIKey(apiKey string) Option {
	return func(o *Client) {
		o.options.APIKey = apiKey
	}
}

// WithTransport 替换 HTTP 传输层
func WithTransport(transport http.RoundTripper) Option {
	return func(o *Client) {
		o.options.Transport = transport
	}
}

// WithTLSConfig 在已有的 *http.Transport 上设置 TLS，没有时新建一个
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(o *Client) {
		tr, ok := o.options.Transport.(*http.Transport)
		if !ok {
			tr = &http.Transport{}
		} else {
			tr = tr.Clone()
		}
		tr.TLSClientConfig = tlsConfig
		o.options.Transport = tr
	}
}

// WithRetry 设置最大重试次数，<=0 时关闭重试
func WithRetry(maxRetries int) Option {
	return func(o *Client) {
		if maxRetries <= 0 {
			o.options.DisableRetry = true
			o.options.MaxRetries = 0
			return
		}
		o.options.DisableRetry = false
		o.options.MaxRetries = maxRetries
	}
}

// WithCompressRequestBody 使用 gzip 压缩请求体，level 为 gzip 压缩级别
func WithCompressRequestBody(level int) Option {
	return func(o *Client) {
		o.options.CompressRequestBody = true
		o.options.CompressRequestBodyLevel = level
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Client) {
		o.log = log.NewHelper(log.With(logger, "module", "elasticsearch-client"))
	}
}
