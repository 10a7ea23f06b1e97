package breaker

import (
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// Option 熔断器与 Registry 的选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

func applyOptions(opts []Option) options {
	o := options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger 设置 Logger，传入 nil 时使用 clog.Discard()
// 内部会自动添加 namespace: "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}
