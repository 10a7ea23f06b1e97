package guard

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// Config guard 默认行为
//
//	guard:
//	  default_ttl: 5m
//	  rate_limit_cooldown: 60s
//	  max_cooldown: 10m
type Config struct {
	// DefaultTTL 可缓存读取的默认 TTL，0 表示使用缓存自身的 DefaultTTL
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// RateLimitCooldown 429 且无 Retry-After 时，RateLimited 持续的时间（默认 60s）
	RateLimitCooldown time.Duration `json:"rate_limit_cooldown" yaml:"rate_limit_cooldown" mapstructure:"rate_limit_cooldown"`

	// MaxCooldown Retry-After 的上限（默认 10m）
	MaxCooldown time.Duration `json:"max_cooldown" yaml:"max_cooldown" mapstructure:"max_cooldown"`
}

func (c *Config) setDefaults() {
	if c.RateLimitCooldown <= 0 {
		c.RateLimitCooldown = 60 * time.Second
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = 10 * time.Minute
	}
	if c.DefaultTTL < 0 {
		c.DefaultTTL = 0
	}
}

// Option guard 选项函数
type Option func(*options)

type options struct {
	cfg            Config
	logger         clog.Logger
	meter          metrics.Meter
	tracerProvider trace.TracerProvider
}

// WithConfig 设置默认行为
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 Namespace: logger.WithNamespace("guard")
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("guard")
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

// WithTracerProvider 指定 TracerProvider，默认使用全局 otel.GetTracerProvider()
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	o.cfg.setDefaults()
	return o
}
