package httpclient

import (
	"net/http"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// Option 客户端选项函数
type Option func(*options)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	transport http.RoundTripper
	jar       http.CookieJar
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 Namespace: logger.WithNamespace("httpclient")
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("httpclient")
		}
	}
}

// WithMeter 注入指标 Meter，记录出站请求的 RED 指标
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTransport 替换底层 RoundTripper，测试中可注入 httpmock.MockTransport
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// WithCookieJar 使用外部加载好的 cookie jar（优先于 Config.CookieJar）
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) {
		if jar != nil {
			o.jar = jar
		}
	}
}
