package config

import "github.com/ceyewan/warden/clog"

// Option 加载器选项
type Option func(*options)

type options struct {
	logger   clog.Logger
	defaults map[string]any
}

// WithLogger 注入日志记录器，自动追加 "config" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("config")
		}
	}
}

// WithDefaults 注册默认值，优先级最低
//
//	config.WithDefaults(map[string]any{"cache.dir": "./cache"})
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		if o.defaults == nil {
			o.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}
