package httpclient

import (
	"net/url"
	"time"

	"github.com/ceyewan/warden/xerrors"
)

// Config HTTP 客户端配置
//
//	http:
//	  base_url: "https://api.example.com"
//	  user_agent: "warden/1.0"
//	  timeout: 10s
//	  max_response_bytes: 10485760
//	  rate_limit: 5
//	  rate_burst: 10
//	  cookie_jar: true
type Config struct {
	// BaseURL 相对路径请求的前缀，为空时只接受绝对 URL
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// UserAgent 默认 "warden/1.0"
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Timeout 单次请求超时（默认 30s），可被 WithTimeout 覆盖
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxResponseBytes 响应体上限（默认 10MB）
	MaxResponseBytes int64 `json:"max_response_bytes" yaml:"max_response_bytes" mapstructure:"max_response_bytes"`

	// RateLimit 每秒请求数，0 表示不限流
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// RateBurst 令牌桶容量（默认 1）
	RateBurst int `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst"`

	// CookieJar 启用内存 cookie jar
	CookieJar bool `json:"cookie_jar" yaml:"cookie_jar" mapstructure:"cookie_jar"`
}

const (
	defaultUserAgent        = "warden/1.0"
	defaultTimeout          = 30 * time.Second
	defaultMaxResponseBytes = 10 << 20
)

func (c *Config) validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return xerrors.Wrapf(ErrInvalidConfig, "invalid base_url %q", c.BaseURL)
		}
	}
	if c.RateLimit < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "rate_limit must not be negative")
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	return nil
}
