package connstate

import (
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// DefaultHistorySize 默认保留的迁移记录条数
const DefaultHistorySize = 100

// Option 状态机选项
type Option func(*Machine)

// WithLogger 注入日志记录器，自动追加 "connstate" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l.WithNamespace("connstate")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(m *Machine) {
		if meter != nil {
			m.meter = meter
		}
	}
}

// WithHistorySize 设置历史记录上限，小于 1 时忽略
func WithHistorySize(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.historySize = n
		}
	}
}

// WithInitialState 设置初始状态，默认 Disconnected
func WithInitialState(s State) Option {
	return func(m *Machine) {
		if s.Valid() {
			m.state = s
		}
	}
}

// withClock 测试用
func withClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}
