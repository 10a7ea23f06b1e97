package cache

import (
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// Option 缓存组件选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	now    func() time.Time
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 Namespace: logger.WithNamespace("cache")
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("cache")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// GetOption 读取选项
type GetOption func(*getOptions)

type getOptions struct {
	ignoreTTL bool
}

// WithIgnoreTTL 允许读取已过期的条目，最多过期 Config.MaxStale
func WithIgnoreTTL() GetOption {
	return func(o *getOptions) {
		o.ignoreTTL = true
	}
}

// withClock 测试用
func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
