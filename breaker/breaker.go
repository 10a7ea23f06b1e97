// Package breaker 提供按调用类别隔离的熔断器。
//
// 基于 sony/gobreaker 实现，语义为"连续失败计数"：
//   - Closed：正常放行，连续失败达到 FailureThreshold 后进入 Open
//   - Open：直接拒绝（ErrOpenState），Timeout 后进入 HalfOpen
//   - HalfOpen：最多放行 HalfOpenMaxCalls 个探测请求，超出的返回 ErrTooManyRequests；
//     探测全部成功回到 Closed，任一失败立即回到 Open
//
// 被拒绝时 fn 不会执行。多个类别的熔断器通过 Registry 统一管理：
//
//	reg := breaker.NewRegistry(&breaker.RegistryConfig{
//		Default: breaker.Config{FailureThreshold: 3, Timeout: 30 * time.Second},
//	}, breaker.WithLogger(logger))
//
//	err := reg.Get("devices").Call(ctx, func(ctx context.Context) error {
//		_, err := client.Get(ctx, "/api/devices")
//		return err
//	})
//	if breaker.IsRejected(err) {
//		// 暂时不可用
//	}
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Config 单个熔断器的配置，创建后不可变
type Config struct {
	// FailureThreshold 连续失败多少次后熔断（默认 5）
	FailureThreshold uint32 `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// Timeout Open 状态持续时间，之后进入 HalfOpen（默认 60s）
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// HalfOpenMaxCalls HalfOpen 状态允许的探测请求数（默认 1）
	HalfOpenMaxCalls uint32 `json:"half_open_max_calls" yaml:"half_open_max_calls" mapstructure:"half_open_max_calls"`
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// Snapshot 熔断器某一时刻的状态
type Snapshot struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	HalfOpenCalls   int       `json:"half_open_calls"`
}

// CircuitBreaker 单个熔断器
//
// 计数由 mu 保护，fn 在任何锁之外执行。
type CircuitBreaker struct {
	name   string
	cfg    Config
	logger clog.Logger
	inst   *instruments
	now    func() time.Time

	mu           sync.Mutex
	gb           *gobreaker.CircuitBreaker[struct{}]
	failureCount int
	lastFailure  time.Time
}

// New 创建熔断器，name 用于日志与指标
func New(name string, cfg Config, opts ...Option) (*CircuitBreaker, error) {
	if name == "" {
		return nil, ErrNameEmpty
	}

	o := applyOptions(opts)
	cb := &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: o.logger.With(clog.String("breaker", name)),
		now:    time.Now,
	}
	cb.inst = newInstruments(o.meter, cb.logger)
	cb.gb = cb.newGobreaker()

	cb.logger.Debug("circuit breaker created",
		clog.Int("failure_threshold", int(cb.cfg.FailureThreshold)),
		clog.Duration("timeout", cb.cfg.Timeout),
		clog.Int("half_open_max_calls", int(cb.cfg.HalfOpenMaxCalls)))

	return cb, nil
}

func (cb *CircuitBreaker) newGobreaker() *gobreaker.CircuitBreaker[struct{}] {
	threshold := cb.cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cb.name,
		MaxRequests: cb.cfg.HalfOpenMaxCalls,
		Timeout:     cb.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isExcluded(err)
		},
		// gobreaker 持锁调用，这里不能回调 cb.gb
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.onStateChange(fromGobreaker(from), fromGobreaker(to))
		},
	})
}

// Name 熔断器名称
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Config 返回生效的配置（已填充默认值）
func (cb *CircuitBreaker) Config() Config {
	return cb.cfg
}

// Call 在熔断保护下执行 fn
//
// 被拒绝时返回包装了 ErrOpenState 或 ErrTooManyRequests 的错误，fn 不执行。
// fn 返回经 Exclude 包装的错误时，不计入失败。
// fn 返回错误时若 ctx 已取消或超时，同样不计入失败：这是调用方自己的事件，与依赖无关。
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb.mu.Lock()
	gb := cb.gb
	cb.mu.Unlock()

	start := cb.now()
	_, err := gb.Execute(func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			err = Exclude(err)
		}
		return struct{}{}, err
	})
	elapsed := cb.now().Sub(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		cb.inst.reject(ctx, cb.name, StateOpen)
		return xerrors.Wrapf(ErrOpenState, "breaker %s", cb.name)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		cb.inst.reject(ctx, cb.name, StateHalfOpen)
		return xerrors.Wrapf(ErrTooManyRequests, "breaker %s", cb.name)
	}

	cb.mu.Lock()
	if gb == cb.gb {
		if err != nil && !isExcluded(err) {
			cb.failureCount++
			cb.lastFailure = cb.now()
		} else if gb.State() == gobreaker.StateClosed {
			cb.failureCount = 0
		}
	}
	failures := cb.failureCount
	cb.mu.Unlock()

	cb.inst.observe(ctx, cb.name, err, elapsed)
	if err != nil && !isExcluded(err) {
		cb.logger.Debug("protected call failed",
			clog.Int("failure_count", failures),
			clog.Error(err))
	}
	return err
}

// State 当前状态
//
// Open 在 Timeout 过后读取时会呈现为 HalfOpen。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	gb := cb.gb
	cb.mu.Unlock()
	return fromGobreaker(gb.State())
}

// Snapshot 返回当前状态与计数
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := fromGobreaker(cb.gb.State())
	counts := cb.gb.Counts()
	snap := Snapshot{
		Name:            cb.name,
		State:           state,
		FailureCount:    cb.failureCount,
		LastFailureTime: cb.lastFailure,
	}
	switch state {
	case StateClosed:
		// Closed 时以 gobreaker 的计数为准，它与判定熔断使用同一份数据
		snap.FailureCount = int(counts.ConsecutiveFailures)
	case StateHalfOpen:
		snap.HalfOpenCalls = int(counts.Requests)
	}
	return snap
}

// Reset 强制回到 Closed 并清零计数
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	prev := fromGobreaker(cb.gb.State())
	cb.gb = cb.newGobreaker()
	cb.failureCount = 0
	cb.lastFailure = time.Time{}
	cb.mu.Unlock()

	if prev != StateClosed {
		cb.onStateChange(prev, StateClosed)
	}
	cb.logger.Info("circuit breaker reset")
}

func (cb *CircuitBreaker) onStateChange(from, to State) {
	cb.logger.Info("circuit breaker state changed",
		clog.String("from", from.String()),
		clog.String("to", to.String()))
	cb.inst.stateChange(context.Background(), cb.name, from, to)
}
