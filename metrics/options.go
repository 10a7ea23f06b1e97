package metrics

import (
	"github.com/ceyewan/warden/clog"
	"github.com/prometheus/client_golang/prometheus"
)

// Option Meter 实例的选项函数
type Option func(*options)

type options struct {
	logger     clog.Logger
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// WithLogger 注入日志记录器，自动追加 "metrics" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}

// WithRegistry 使用独立的 Prometheus Registry，而非全局 DefaultRegisterer
//
// 测试或同进程内多个 Meter 实例时使用，避免重复注册。
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registerer = reg
			o.gatherer = reg
		}
	}
}
