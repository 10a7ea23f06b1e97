// Package session 组装一次客户端会话所需的全部组件。
//
// 一个 Session 持有一个连接状态机、一个熔断器注册表、一个两级缓存和一个 HTTP 客户端，
// 并按类别分发共享这些组件的 guard.Guard。各业务模块只依赖 Guard，不直接接触底层组件。
//
//	loader := config.MustLoad(&config.Config{Paths: []string{"./config"}})
//	s, err := session.Load(loader)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.Start(restored)
//	devices, ok := guard.Fetch[[]Device](ctx, s.Guard("devices"), guard.Request{Path: "/api/devices", Cacheable: true})
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/warden/breaker"
	"github.com/ceyewan/warden/cache"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/config"
	"github.com/ceyewan/warden/connstate"
	"github.com/ceyewan/warden/guard"
	"github.com/ceyewan/warden/httpclient"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/trace"
	"github.com/ceyewan/warden/xerrors"
)

const shutdownTimeout = 5 * time.Second

// Session 会话，并发安全
type Session struct {
	cfg    Config
	logger clog.Logger
	meter  metrics.Meter

	machine  *connstate.Machine
	breakers *breaker.Registry
	cache    *cache.Cache
	client   httpclient.Client

	ownMeter      bool
	traceShutdown func(context.Context) error

	mu     sync.Mutex
	guards map[string]*guard.Guard
	closed bool
}

// Status 会话状态快照
type Status struct {
	State    connstate.State    `json:"state"`
	Breakers []breaker.Snapshot `json:"breakers"`
	Cache    cache.Stats        `json:"cache"`
}

// Load 从 loader 反序列化 Config 并创建会话
func Load(loader config.Loader, opts ...Option) (*Session, error) {
	if loader == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "loader is nil")
	}
	var cfg Config
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal session config")
	}
	return New(&cfg, opts...)
}

// New 创建会话，状态机初始为 Disconnected
func New(cfg *Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "config is nil")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		cfg:    *cfg,
		guards: make(map[string]*guard.Guard),
	}

	if o.logger == nil {
		logger, err := clog.New(&s.cfg.Log, clog.WithNamespace("warden"), clog.WithStandardContext())
		if err != nil {
			return nil, xerrors.Wrap(err, "create logger")
		}
		o.logger = logger
	}
	s.logger = o.logger

	if o.meter == nil {
		meter, err := metrics.New(&s.cfg.Metrics, metrics.WithLogger(s.logger))
		if err != nil {
			return nil, xerrors.Wrap(err, "create meter")
		}
		o.meter = meter
		s.ownMeter = true
	}
	s.meter = o.meter

	if s.cfg.Trace.Enabled {
		if s.cfg.Trace.ServiceName == "" {
			s.cfg.Trace.ServiceName = "warden"
		}
		shutdown, err := trace.Init(&s.cfg.Trace)
		if err != nil {
			s.shutdownMeter()
			return nil, xerrors.Wrap(err, "init tracing")
		}
		s.traceShutdown = shutdown
	}

	c, err := cache.New(&s.cfg.Cache, cache.WithLogger(s.logger), cache.WithMeter(s.meter))
	if err != nil {
		s.shutdownTelemetry()
		return nil, xerrors.Wrap(err, "create cache")
	}
	s.cache = c

	httpOpts := []httpclient.Option{
		httpclient.WithLogger(s.logger),
		httpclient.WithMeter(s.meter),
		httpclient.WithTransport(o.transport),
		httpclient.WithCookieJar(o.jar),
	}
	client, err := httpclient.New(&s.cfg.HTTP, httpOpts...)
	if err != nil {
		s.cache.Close()
		s.shutdownTelemetry()
		return nil, xerrors.Wrap(err, "create http client")
	}
	s.client = client

	s.machine = connstate.New(
		connstate.WithLogger(s.logger),
		connstate.WithMeter(s.meter))
	s.breakers = breaker.NewRegistry(&s.cfg.Breakers,
		breaker.WithLogger(s.logger),
		breaker.WithMeter(s.meter))

	s.logger.Info("session created",
		clog.String("base_url", s.cfg.HTTP.BaseURL),
		clog.String("cache_dir", s.cfg.Cache.Dir))
	return s, nil
}

// Start 开始会话；restored 为 true 表示复用了上一次已认证的会话，直接置为 Authenticated
func (s *Session) Start(restored bool) {
	if restored {
		s.machine.SetInitialState(connstate.Authenticated)
	}
	s.logger.Info("session started",
		clog.Bool("restored", restored),
		clog.String("state", s.machine.State().String()))
}

// Guard 返回 category 对应的 Guard，同一类别共享同一个熔断器
//
// Close 之后新建的 Guard 处于已停止状态，不会再启动限流冷却定时器。
func (s *Session) Guard(category string) *guard.Guard {
	cb := s.breakers.Get(category)
	name := cb.Name()

	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.guards[name]; ok {
		return g
	}

	// 协作者均非 nil，New 不会失败
	g, _ := guard.New(s.client, cb, s.machine, s.cache,
		guard.WithConfig(s.cfg.Guard),
		guard.WithLogger(s.logger),
		guard.WithMeter(s.meter))
	if s.closed {
		g.Stop()
		s.logger.Warn("guard requested after session closed", clog.String("category", name))
	}
	s.guards[name] = g
	return g
}

// Machine 会话共享的连接状态机
func (s *Session) Machine() *connstate.Machine { return s.machine }

// Breakers 会话共享的熔断器注册表
func (s *Session) Breakers() *breaker.Registry { return s.breakers }

// Cache 会话共享的缓存
func (s *Session) Cache() *cache.Cache { return s.cache }

// Client 会话共享的 HTTP 客户端
func (s *Session) Client() httpclient.Client { return s.client }

// Logger 会话根 Logger
func (s *Session) Logger() clog.Logger { return s.logger }

// Status 当前状态快照
func (s *Session) Status() Status {
	return Status{
		State:    s.machine.State(),
		Breakers: s.breakers.Snapshots(),
		Cache:    s.cache.Stats(),
	}
}

// WatchLogLevel 监听 log.level 变更并动态调整日志级别，ctx 取消后停止
func (s *Session) WatchLogLevel(ctx context.Context, loader config.Loader) error {
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		return err
	}
	go func() {
		for ev := range ch {
			raw, _ := ev.Value.(string)
			level, err := clog.ParseLevel(raw)
			if err != nil {
				s.logger.Warn("ignoring invalid log level", clog.String("level", raw))
				continue
			}
			if err := s.logger.SetLevel(level); err != nil {
				s.logger.Warn("failed to set log level", clog.Error(err))
				continue
			}
			s.logger.Info("log level changed", clog.String("level", level.String()))
		}
	}()
	return nil
}

// Close 停止所有 Guard 的计时器，释放缓存内存层，关闭会话自己创建的遥测组件
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	guards := make([]*guard.Guard, 0, len(s.guards))
	for _, g := range s.guards {
		guards = append(guards, g)
	}
	s.mu.Unlock()

	for _, g := range guards {
		g.Stop()
	}
	s.cache.Close()

	err := s.shutdownTelemetry()
	s.logger.Info("session closed")
	s.logger.Flush()
	return err
}

func (s *Session) shutdownTelemetry() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs xerrors.Collector
	if s.traceShutdown != nil {
		errs.Collect(s.traceShutdown(ctx))
	}
	errs.Collect(s.shutdownMeterCtx(ctx))
	return errs.Err()
}

func (s *Session) shutdownMeter() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.shutdownMeterCtx(ctx)
}

func (s *Session) shutdownMeterCtx(ctx context.Context) error {
	if !s.ownMeter {
		return nil
	}
	return s.meter.Shutdown(ctx)
}
