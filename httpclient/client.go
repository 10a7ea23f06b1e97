// Package httpclient 提供面向设备控制 API 的出站 HTTP 客户端。
//
// 在 net/http 之上补充：BaseURL 拼接、默认 User-Agent、每请求 X-Request-ID、
// 客户端侧令牌桶限流、响应体大小限制、出站 RED 指标，以及 otelhttp 链路追踪。
// 响应体在返回前完整读取，调用方无需关闭。
//
//	client, err := httpclient.New(&httpclient.Config{
//	    BaseURL:   "https://api.example.com",
//	    RateLimit: 5,
//	}, httpclient.WithLogger(logger), httpclient.WithMeter(meter))
//
//	resp, err := client.Get(ctx, "/api/devices", httpclient.WithQuery(map[string]string{"page": "1"}))
//	if err != nil {
//	    return err
//	}
//	if err := resp.RaiseForStatus(); err != nil {
//	    return err
//	}
//	var devices []Device
//	err = resp.JSON(&devices)
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/xerrors"
)

// HeaderRequestID 每个请求自动携带的追踪头
const HeaderRequestID = "X-Request-ID"

// Client 出站 HTTP 客户端
//
// url 可以是绝对地址，也可以是相对 Config.BaseURL 的路径。
// 只有传输层失败（连接、超时、限流等待被取消、响应过大）返回 error，
// 非 2xx 响应通过 Response.RaiseForStatus 判断。
type Client interface {
	Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Post(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Put(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
}

type client struct {
	cfg     Config
	base    *url.URL
	hc      *http.Client
	limiter *rate.Limiter
	metrics *metrics.HTTPClientMetrics
	logger  clog.Logger
}

// New 创建 HTTP 客户端
func New(cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "config is nil")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:    clog.Discard(),
		meter:     metrics.Discard(),
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	jar := o.jar
	if jar == nil && c.CookieJar {
		j, err := cookiejar.New(nil)
		if err != nil {
			return nil, xerrors.Wrap(err, "create cookie jar")
		}
		jar = j
	}

	m, err := metrics.NewHTTPClientMetrics(o.meter, metrics.DefaultHTTPClientMetricsConfig("warden"))
	if err != nil {
		o.logger.Warn("failed to create http client metrics", clog.Error(err))
	}

	cl := &client{
		cfg: c,
		hc: &http.Client{
			// 出站请求创建 client span 并注入 traceparent
			Transport: otelhttp.NewTransport(o.transport),
			Jar:       jar,
			Timeout:   c.Timeout,
		},
		metrics: m,
		logger:  o.logger,
	}
	if c.BaseURL != "" {
		cl.base, _ = url.Parse(strings.TrimRight(c.BaseURL, "/") + "/")
	}
	if c.RateLimit > 0 {
		cl.limiter = rate.NewLimiter(rate.Limit(c.RateLimit), c.RateBurst)
	}
	return cl, nil
}

func (c *client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, opts)
}

func (c *client) Post(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, url, opts)
}

func (c *client) Put(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPut, url, opts)
}

func (c *client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, url, opts)
}

func (c *client) do(ctx context.Context, method, rawURL string, opts []RequestOption) (*Response, error) {
	var r request
	for _, opt := range opts {
		opt(&r)
	}

	u, err := c.resolve(rawURL, r.query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := r.encodeBody()
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, xerrors.Wrap(err, "rate limit wait")
		}
	}

	parent := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, xerrors.Wrapf(err, "build request %s %s", method, u.Redacted())
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.metrics.Observe(ctx, method, u.Host, 0, time.Since(start))
		c.logger.Debug("http request failed",
			clog.String("method", method),
			clog.String("url", u.Redacted()),
			clog.String("request_id", req.Header.Get(HeaderRequestID)),
			clog.Error(err))
		err = xerrors.Wrapf(err, "%s %s", method, u.Redacted())
		if parent.Err() == nil && isTimeout(err) {
			err = xerrors.Combine(ErrTimeout, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	elapsed := time.Since(start)
	c.metrics.Observe(ctx, method, u.Host, resp.StatusCode, elapsed)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read response %s %s", method, u.Redacted())
	}
	if int64(len(data)) > c.cfg.MaxResponseBytes {
		return nil, xerrors.Wrapf(ErrResponseTooLarge, "%s %s exceeds %d bytes", method, u.Redacted(), c.cfg.MaxResponseBytes)
	}

	c.logger.Debug("http request done",
		clog.String("method", method),
		clog.String("url", u.Redacted()),
		clog.Int("status", resp.StatusCode),
		clog.Int("bytes", len(data)),
		clog.Duration("duration", elapsed))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		method:     method,
		url:        u.Redacted(),
		body:       data,
	}, nil
}

// isTimeout 请求自身的超时：WithTimeout 的 ctx 到期或 http.Client.Timeout 触发
func isTimeout(err error) bool {
	if xerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return xerrors.As(err, &ne) && ne.Timeout()
}

// resolve 拼接 BaseURL 并合并查询参数
func (c *client) resolve(rawURL string, query map[string]string) (*url.URL, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, xerrors.Wrapf(ErrInvalidURL, "%q: %v", rawURL, err)
	}

	u := ref
	if !ref.IsAbs() {
		if c.base == nil {
			return nil, xerrors.Wrapf(ErrInvalidURL, "relative url %q without base_url", rawURL)
		}
		ref.Path = strings.TrimLeft(ref.Path, "/")
		u = c.base.ResolveReference(ref)
	}

	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (r *request) encodeBody() ([]byte, string, error) {
	if r.hasJSON {
		data, err := json.Marshal(r.jsonBody)
		if err != nil {
			return nil, "", xerrors.Wrap(err, "encode json body")
		}
		return data, "application/json", nil
	}
	return r.body, r.contentType, nil
}
