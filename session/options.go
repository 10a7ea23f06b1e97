package session

import (
	"net/http"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// Option 会话选项函数
type Option func(*options)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	transport http.RoundTripper
	jar       http.CookieJar
}

// WithLogger 使用外部 Logger，不设置时按 Config.Log 创建
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeter 使用外部 Meter，不设置时按 Config.Metrics 创建并由会话负责关闭
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTransport 替换 HTTP 客户端的 RoundTripper
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// WithCookieJar 注入认证流程加载好的 cookie
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) {
		if jar != nil {
			o.jar = jar
		}
	}
}
