// Package guard 把连接状态、熔断器、缓存与 HTTP 客户端组合成一次"受保护调用"。
//
// 每次 Do 依次经过：
//  1. 连接状态闸门：CanExecuteCommands 为 false 时直接返回 Unavailable，不访问网络与熔断器；
//  2. 缓存：可缓存的 GET 命中新鲜缓存时返回 Cached；
//  3. 熔断器：未命中时通过 CircuitBreaker.Call 发出 HTTP 请求；
//  4. 成功：回写缓存，或在写操作后失效指定 key；
//  5. 失败：分类记录；若本次失败使熔断器进入 Open，连接状态迁移到 CircuitOpen；
//     429 迁移到 RateLimited，并在冷却结束后自动回到 Authenticated。
//
// 预期内的失败从不以 error 或 panic 形式抛出，调用方只需判断 Result.OK()。
//
//	g, err := guard.New(client, registry.Get("devices"), machine, c, guard.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	devices, ok := guard.Fetch[[]Device](ctx, g, guard.Request{
//	    Path:      "/api/devices",
//	    Cacheable: true,
//	    TTL:       time.Minute,
//	})
//	if !ok {
//	    // 当前不可用，静默降级
//	}
package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/warden/breaker"
	"github.com/ceyewan/warden/cache"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/connstate"
	"github.com/ceyewan/warden/httpclient"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/xerrors"
)

const tracerName = "github.com/ceyewan/warden/guard"

// Guard 受保护调用编排器，并发安全
type Guard struct {
	client   httpclient.Client
	breaker  *breaker.CircuitBreaker
	machine  *connstate.Machine
	cache    *cache.Cache
	cfg      Config
	category string

	logger      clog.Logger
	tracer      trace.Tracer
	calls       metrics.Counter
	escalations metrics.Counter

	mu       sync.Mutex
	cooldown *time.Timer
	stopped  bool
}

// New 创建 Guard，四个协作者均为必填
func New(client httpclient.Client, cb *breaker.CircuitBreaker, machine *connstate.Machine, c *cache.Cache, opts ...Option) (*Guard, error) {
	switch {
	case client == nil:
		return nil, xerrors.Wrap(ErrNilCollaborator, "client")
	case cb == nil:
		return nil, xerrors.Wrap(ErrNilCollaborator, "breaker")
	case machine == nil:
		return nil, xerrors.Wrap(ErrNilCollaborator, "machine")
	case c == nil:
		return nil, xerrors.Wrap(ErrNilCollaborator, "cache")
	}

	o := applyOptions(opts)
	logger := o.logger.With(clog.String(LabelCategory, cb.Name()))

	return &Guard{
		client:      client,
		breaker:     cb,
		machine:     machine,
		cache:       c,
		cfg:         o.cfg,
		category:    cb.Name(),
		logger:      logger,
		tracer:      o.tracerProvider.Tracer(tracerName),
		calls:       newCounter(o.meter, logger, MetricCallsTotal, "Protected calls by category and outcome"),
		escalations: newCounter(o.meter, logger, MetricEscalationsTotal, "Connection state escalations triggered by protected calls"),
	}, nil
}

// Category 绑定的熔断器名称
func (g *Guard) Category() string {
	return g.category
}

// Do 执行一次受保护调用
func (g *Guard) Do(ctx context.Context, req Request) Result {
	method := normalizeMethod(req.Method)

	ctx, span := g.tracer.Start(ctx, "guard.Do",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("guard.category", g.category),
			attribute.String("http.request.method", method),
			attribute.String("guard.path", req.Path),
			attribute.Bool("guard.cacheable", isCacheable(method, req)),
		))
	defer span.End()

	res := g.do(ctx, method, req)

	span.SetAttributes(attribute.String("guard.outcome", string(res.Outcome)))
	if res.Failure != FailureNone {
		span.SetAttributes(attribute.String("guard.failure", string(res.Failure)))
	}
	if res.StatusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	}
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	if !res.OK() {
		span.SetStatus(codes.Error, string(res.Outcome))
	}

	g.calls.Inc(ctx,
		metrics.L(LabelCategory, g.category),
		metrics.L(LabelOutcome, string(res.Outcome)))
	return res
}

func (g *Guard) do(ctx context.Context, method string, req Request) Result {
	if !isSupported(method) {
		return Result{
			Outcome: OutcomeFailed,
			Err:     xerrors.Wrapf(ErrUnsupportedMethod, "%q", req.Method),
		}
	}

	cacheable := isCacheable(method, req)
	key := ""
	if cacheable {
		key = cacheKey(req)
	}

	if !g.machine.CanExecuteCommands() {
		state := g.machine.State()
		g.logger.Debug("call skipped, commands not allowed",
			clog.String("state", state.String()),
			clog.String("path", req.Path))
		res := Result{
			Outcome: OutcomeUnavailable,
			Err:     xerrors.Wrapf(ErrNotConnected, "state %s", state),
		}
		return g.fallback(ctx, req, key, res)
	}

	if cacheable {
		var raw json.RawMessage
		if g.cache.Get(ctx, key, &raw) {
			return Result{Outcome: OutcomeCached, Body: raw}
		}
	}

	var resp *httpclient.Response
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		r, err := g.send(ctx, method, req)
		if err != nil {
			return err
		}
		resp = r
		if err := r.RaiseForStatus(); err != nil {
			if !countsAgainstDependency(r.StatusCode) {
				return breaker.Exclude(err)
			}
			return err
		}
		if cacheable && len(r.Bytes()) > 0 && !json.Valid(r.Bytes()) {
			return xerrors.Wrapf(ErrDecode, "%s %s", method, req.Path)
		}
		return nil
	})

	if err != nil {
		res := Result{
			Outcome: OutcomeFailed,
			Failure: classify(err),
			Err:     err,
		}
		if resp != nil {
			res.StatusCode = resp.StatusCode
			res.Header = resp.Header
		}
		switch {
		case res.Failure == FailureRejected:
			res.Outcome = OutcomeRejected
		case ctx.Err() != nil:
			res.Failure = FailureCanceled
		}
		res.Err = xerrors.WithCode(err, string(res.Failure))
		g.logger.Warn("protected call failed",
			clog.String("method", method),
			clog.String("path", req.Path),
			clog.String("failure", string(res.Failure)),
			clog.Int("status", res.StatusCode),
			clog.Error(err))

		g.escalate(ctx, res, resp)
		return g.fallback(ctx, req, key, res)
	}

	if cacheable && len(resp.Bytes()) > 0 {
		ttl := req.TTL
		if ttl <= 0 {
			ttl = g.cfg.DefaultTTL
		}
		if err := g.cache.Set(ctx, key, json.RawMessage(resp.Bytes()), ttl); err != nil {
			g.logger.Warn("failed to cache response", clog.String("key", key), clog.Error(err))
		}
	} else if method != http.MethodGet {
		for _, k := range req.Invalidate {
			if err := g.cache.Invalidate(ctx, k); err != nil {
				g.logger.Warn("failed to invalidate cache", clog.String("key", k), clog.Error(err))
			}
		}
	}

	return Result{
		Outcome:    OutcomeOK,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Bytes(),
	}
}

// fallback StaleOnError 时用过期缓存替代失败结果
func (g *Guard) fallback(ctx context.Context, req Request, key string, res Result) Result {
	if !req.StaleOnError || key == "" {
		return res
	}
	var raw json.RawMessage
	if !g.cache.Get(ctx, key, &raw, cache.WithIgnoreTTL()) {
		return res
	}
	g.logger.Info("serving stale cache", clog.String("key", key), clog.String("outcome", string(res.Outcome)))
	res.Outcome = OutcomeStale
	res.Body = raw
	return res
}

// escalate 把熔断器的局部事实提升为会话状态，尽力而为
func (g *Guard) escalate(ctx context.Context, res Result, resp *httpclient.Response) {
	if res.Failure == FailureRejected || res.Failure == FailureCanceled {
		return
	}

	if g.breaker.State() == breaker.StateOpen {
		if g.transition(ctx, connstate.CircuitOpen) {
			g.logger.Error("breaker opened, session moved to circuit_open")
		}
		return
	}

	if res.StatusCode == http.StatusTooManyRequests {
		cooldown := g.cfg.RateLimitCooldown
		if resp != nil {
			if d, ok := resp.RetryAfter(); ok {
				cooldown = d
			}
		}
		if cooldown <= 0 {
			cooldown = g.cfg.RateLimitCooldown
		}
		if cooldown > g.cfg.MaxCooldown {
			cooldown = g.cfg.MaxCooldown
		}
		if g.transition(ctx, connstate.RateLimited) {
			g.logger.Warn("rate limited", clog.Duration("cooldown", cooldown))
			g.scheduleCooldown(cooldown)
		}
	}
}

func (g *Guard) transition(ctx context.Context, to connstate.State) bool {
	if err := g.machine.TransitionTo(to); err != nil {
		g.logger.Warn("state escalation skipped",
			clog.String("to", to.String()),
			clog.Error(err))
		return false
	}
	g.escalations.Inc(ctx,
		metrics.L(LabelCategory, g.category),
		metrics.L(LabelState, to.String()))
	return true
}

// scheduleCooldown 冷却结束时若仍处于 RateLimited 则回到 Authenticated
func (g *Guard) scheduleCooldown(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	if g.cooldown != nil {
		g.cooldown.Stop()
	}
	g.cooldown = time.AfterFunc(d, func() {
		if g.machine.State() != connstate.RateLimited {
			return
		}
		if err := g.machine.TransitionTo(connstate.Authenticated); err != nil {
			g.logger.Warn("rate limit cooldown transition failed", clog.Error(err))
			return
		}
		g.logger.Info("rate limit cooldown finished")
	})
}

// Recover 管理性探测：仅在 CircuitOpen 下执行一次经熔断器的请求，
// 成功后迁移回 Authenticated
func (g *Guard) Recover(ctx context.Context, req Request) bool {
	if g.machine.State() != connstate.CircuitOpen {
		return false
	}
	method := normalizeMethod(req.Method)
	if !isSupported(method) {
		return false
	}

	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		r, err := g.send(ctx, method, req)
		if err != nil {
			return err
		}
		return r.RaiseForStatus()
	})
	if err != nil {
		g.logger.Info("recovery probe failed", clog.Error(err))
		return false
	}

	if err := g.machine.TransitionTo(connstate.Authenticated); err != nil {
		g.logger.Warn("recovery transition failed", clog.Error(err))
		return false
	}
	g.logger.Info("recovered from circuit_open")
	return true
}

// Stop 取消未触发的冷却计时器
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	if g.cooldown != nil {
		g.cooldown.Stop()
		g.cooldown = nil
	}
}

func (g *Guard) send(ctx context.Context, method string, req Request) (*httpclient.Response, error) {
	var opts []httpclient.RequestOption
	if len(req.Query) > 0 {
		opts = append(opts, httpclient.WithQuery(req.Query))
	}
	if len(req.Headers) > 0 {
		opts = append(opts, httpclient.WithHeaders(req.Headers))
	}
	if req.Body != nil {
		opts = append(opts, httpclient.WithJSON(req.Body))
	}
	if req.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(req.Timeout))
	}

	switch method {
	case http.MethodPost:
		return g.client.Post(ctx, req.Path, opts...)
	case http.MethodPut:
		return g.client.Put(ctx, req.Path, opts...)
	case http.MethodDelete:
		return g.client.Delete(ctx, req.Path, opts...)
	default:
		return g.client.Get(ctx, req.Path, opts...)
	}
}

// Fetch 执行 Do 并把负载解码为 T，不可用或解码失败时返回零值与 false
func Fetch[T any](ctx context.Context, g *Guard, req Request) (T, bool) {
	var zero T
	res := g.Do(ctx, req)
	if !res.OK() {
		return zero, false
	}
	var v T
	if err := res.Decode(&v); err != nil {
		g.logger.Warn("failed to decode payload", clog.String("path", req.Path), clog.Error(err))
		return zero, false
	}
	return v, true
}

func normalizeMethod(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}

func isSupported(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func isCacheable(method string, req Request) bool {
	return method == http.MethodGet && req.Cacheable
}

func cacheKey(req Request) string {
	if req.CacheKey != "" {
		return cache.Sanitize(req.CacheKey)
	}
	return cache.Key(req.Path, req.Query)
}

// countsAgainstDependency 4xx（408、429 除外）是调用方的问题，不计入熔断
func countsAgainstDependency(status int) bool {
	if status >= 400 && status < 500 {
		return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}
	return true
}

func classify(err error) Failure {
	switch {
	case breaker.IsRejected(err):
		return FailureRejected
	case xerrors.Is(err, ErrDecode):
		return FailureDecode
	default:
		if _, ok := httpclient.AsStatusError(err); ok {
			return FailureStatus
		}
		return FailureTransport
	}
}
