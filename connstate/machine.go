package connstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// Transition 一次成功的状态迁移
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Callback 进入某状态时调用
type Callback func(t Transition) error

// Machine 连接状态机，并发安全
type Machine struct {
	mu          sync.RWMutex
	state       State
	history     []Transition
	historySize int
	callbacks   map[State][]Callback

	logger      clog.Logger
	meter       metrics.Meter
	transitions metrics.Counter
	now         func() time.Time
}

// New 创建状态机，初始状态为 Disconnected
func New(opts ...Option) *Machine {
	m := &Machine{
		state:       Disconnected,
		historySize: DefaultHistorySize,
		callbacks:   make(map[State][]Callback),
		logger:      clog.Discard(),
		meter:       metrics.Discard(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	counter, err := m.meter.Counter("connstate_transitions_total", "Total number of connection state transitions")
	if err != nil {
		m.logger.Warn("failed to create transitions counter", clog.Error(err))
		counter, _ = metrics.Discard().Counter("", "")
	}
	m.transitions = counter

	return m
}

// State 当前状态
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected 仅 Authenticated 为 true
func (m *Machine) IsConnected() bool {
	return m.State() == Authenticated
}

// CanExecuteCommands 仅 Authenticated 允许发起业务请求
func (m *Machine) CanExecuteCommands() bool {
	return m.State() == Authenticated
}

// IsErrorState 当前是否处于 Error、RateLimited 或 CircuitOpen
func (m *Machine) IsErrorState() bool {
	return m.State().IsError()
}

// CanTransitionTo 从当前状态迁移到 to 是否合法
func (m *Machine) CanTransitionTo(to State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isAllowed(m.state, to)
}

// TransitionTo 迁移到 to
//
// 非法迁移返回 *TransitionError，状态不变。成功后在锁外依次执行 to 的回调。
func (m *Machine) TransitionTo(to State) error {
	m.mu.Lock()
	from := m.state
	if !isAllowed(from, to) {
		m.mu.Unlock()
		m.logger.Warn("illegal state transition rejected",
			clog.String("from", from.String()),
			clog.String("to", to.String()))
		return &TransitionError{From: from, To: to}
	}

	t := Transition{From: from, To: to, At: m.now()}
	m.state = to
	m.history = append(m.history, t)
	if overflow := len(m.history) - m.historySize; overflow > 0 {
		m.history = append(m.history[:0:0], m.history[overflow:]...)
	}
	callbacks := append([]Callback(nil), m.callbacks[to]...)
	m.mu.Unlock()

	m.logger.Info("state transition",
		clog.String("from", from.String()),
		clog.String("to", to.String()))
	m.transitions.Inc(context.Background(),
		metrics.L("from", from.String()),
		metrics.L("to", to.String()))

	for i, cb := range callbacks {
		m.runCallback(i, cb, t)
	}
	return nil
}

// SetInitialState 无条件覆盖当前状态，用于恢复已知可用的会话
//
// 不记录历史，不触发回调。未知状态会被忽略。
func (m *Machine) SetInitialState(s State) {
	if !s.Valid() {
		m.logger.Warn("unknown initial state ignored", clog.String("state", s.String()))
		return
	}
	m.mu.Lock()
	from := m.state
	m.state = s
	m.mu.Unlock()

	m.logger.Info("initial state set",
		clog.String("from", from.String()),
		clog.String("state", s.String()))
}

// OnEnter 注册进入 state 时的回调，同一状态的回调按注册顺序执行
func (m *Machine) OnEnter(state State, cb Callback) {
	if cb == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[state] = append(m.callbacks[state], cb)
}

// History 返回最近 limit 条迁移记录，按时间正序；limit <= 0 返回全部
func (m *Machine) History(limit int) []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(m.history) {
		start = len(m.history) - limit
	}
	out := make([]Transition, len(m.history)-start)
	copy(out, m.history[start:])
	return out
}

// runCallback 回调出错或 panic 只记录日志，不影响后续回调
func (m *Machine) runCallback(idx int, cb Callback, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state callback panicked",
				clog.String("state", t.To.String()),
				clog.Int("index", idx),
				clog.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := cb(t); err != nil {
		m.logger.Error("state callback failed",
			clog.String("state", t.To.String()),
			clog.Int("index", idx),
			clog.Error(err))
	}
}
