package breaker

import (
	"sort"
	"sync"

	"github.com/ceyewan/warden/clog"
)

// RegistryConfig Registry 配置
//
//	breakers:
//	  default:
//	    failure_threshold: 5
//	    timeout: 60s
//	  policies:
//	    playback:
//	      failure_threshold: 3
//	      timeout: 10s
type RegistryConfig struct {
	// Default 未单独配置的类别使用的配置
	Default Config `json:"default" yaml:"default" mapstructure:"default"`

	// Policies 按名称覆盖配置，未设置的字段回落到默认值
	Policies map[string]Config `json:"policies" yaml:"policies" mapstructure:"policies"`
}

// Registry 按名称懒创建并缓存熔断器
//
// 同一名称始终返回同一个实例。整个会话构造一次，显式传递给各调用方。
type Registry struct {
	cfg  RegistryConfig
	opts []Option

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	logger   clog.Logger
}

// NewRegistry 创建 Registry，cfg 为 nil 时全部使用默认配置
func NewRegistry(cfg *RegistryConfig, opts ...Option) *Registry {
	if cfg == nil {
		cfg = &RegistryConfig{}
	}
	return &Registry{
		cfg:      *cfg,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
		logger:   applyOptions(opts).logger,
	}
}

// Get 返回名为 name 的熔断器，不存在时按配置创建
//
// name 为空时使用 "default"。
func (r *Registry) Get(name string) *CircuitBreaker {
	if name == "" {
		name = "default"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	// name 非空，New 不会失败
	cb, _ := New(name, r.policy(name), r.opts...)
	r.breakers[name] = cb
	r.logger.Debug("breaker registered", clog.String("breaker", name))
	return cb
}

func (r *Registry) policy(name string) Config {
	cfg := r.cfg.Default
	p, ok := r.cfg.Policies[name]
	if !ok {
		return cfg
	}
	if p.FailureThreshold != 0 {
		cfg.FailureThreshold = p.FailureThreshold
	}
	if p.Timeout > 0 {
		cfg.Timeout = p.Timeout
	}
	if p.HalfOpenMaxCalls != 0 {
		cfg.HalfOpenMaxCalls = p.HalfOpenMaxCalls
	}
	return cfg
}

// Names 已创建的熔断器名称，按字典序
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshots 所有熔断器的快照，按名称排序
func (r *Registry) Snapshots() []Snapshot {
	names := r.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		out = append(out, r.Get(name).Snapshot())
	}
	return out
}

// ResetAll 重置所有熔断器
func (r *Registry) ResetAll() {
	r.mu.Lock()
	all := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		all = append(all, cb)
	}
	r.mu.Unlock()

	for _, cb := range all {
		cb.Reset()
	}
}
