// Package connstate 维护会话级连接状态机。
//
// 状态迁移只允许沿邻接表进行，非法迁移返回 *TransitionError 且不修改状态。
// 进入某状态时按注册顺序触发回调；回调在释放锁之后执行，因此回调内可以再次调用 TransitionTo。
//
//	m := connstate.New()
//	m.OnEnter(connstate.CircuitOpen, func(t connstate.Transition) error {
//		logger.Warn("circuit open, commands paused")
//		return nil
//	})
//	_ = m.TransitionTo(connstate.Authenticating)
package connstate

// State 连接状态
type State string

const (
	Disconnected    State = "disconnected"
	Authenticating  State = "authenticating"
	Authenticated   State = "authenticated"
	RefreshingToken State = "refreshing_token"
	Error           State = "error"
	RateLimited     State = "rate_limited"
	CircuitOpen     State = "circuit_open"
)

// States 全部状态，按声明顺序
var States = []State{
	Disconnected,
	Authenticating,
	Authenticated,
	RefreshingToken,
	Error,
	RateLimited,
	CircuitOpen,
}

// adjacency 合法迁移表，自迁移不在表中
var adjacency = map[State][]State{
	Disconnected:    {Authenticating},
	Authenticating:  {Authenticated, Error, RateLimited, Disconnected},
	Authenticated:   {RefreshingToken, RateLimited, CircuitOpen, Error, Disconnected},
	RefreshingToken: {Authenticated, Error, Disconnected},
	RateLimited:     {Authenticated, Error, Disconnected},
	CircuitOpen:     {Authenticated, Error, Disconnected},
	Error:           {Authenticating, Disconnected},
}

func (s State) String() string {
	return string(s)
}

// Valid 是否为已知状态
func (s State) Valid() bool {
	_, ok := adjacency[s]
	return ok
}

// IsError Error、RateLimited、CircuitOpen 视为错误状态
func (s State) IsError() bool {
	return s == Error || s == RateLimited || s == CircuitOpen
}

// AllowedTransitions 返回 from 可迁移到的状态，返回值是副本
func AllowedTransitions(from State) []State {
	allowed := adjacency[from]
	out := make([]State, len(allowed))
	copy(out, allowed)
	return out
}

func isAllowed(from, to State) bool {
	for _, s := range adjacency[from] {
		if s == to {
			return true
		}
	}
	return false
}
