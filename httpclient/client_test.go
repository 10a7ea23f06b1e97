package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/xerrors"
)

const testBase = "https://api.example.com"

func newMockClient(t *testing.T, cfg *Config, opts ...Option) (Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	if cfg.BaseURL == "" {
		cfg.BaseURL = testBase
	}
	opts = append([]Option{WithTransport(mt), WithLogger(clog.Discard())}, opts...)
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	return c, mt
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.True(t, xerrors.Is(err, ErrInvalidConfig))

	_, err = New(&Config{BaseURL: "not a url"})
	assert.True(t, xerrors.Is(err, ErrInvalidConfig))
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = New(&Config{RateLimit: -1})
	assert.True(t, xerrors.Is(err, ErrInvalidConfig))

	c, err := New(&Config{})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestGet_JSON(t *testing.T) {
	c, mt := newMockClient(t, &Config{})
	mt.RegisterResponder(http.MethodGet, testBase+"/api/devices",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, []map[string]string{{"serial": "A1"}}))

	resp, err := c.Get(context.Background(), "/api/devices")
	require.NoError(t, err)
	require.NoError(t, resp.RaiseForStatus())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var devices []map[string]string
	require.NoError(t, resp.JSON(&devices))
	assert.Equal(t, "A1", devices[0]["serial"])
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestRequest_Headers(t *testing.T) {
	c, mt := newMockClient(t, &Config{UserAgent: "warden-test/2.0"})

	var got http.Header
	mt.RegisterResponder(http.MethodGet, testBase+"/status", func(r *http.Request) (*http.Response, error) {
		got = r.Header.Clone()
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	_, err := c.Get(context.Background(), "status",
		WithHeader("Authorization", "Bearer token"),
		WithHeaders(map[string]string{"X-Device": "d1", "X-Region": "eu"}))
	require.NoError(t, err)

	assert.Equal(t, "warden-test/2.0", got.Get("User-Agent"))
	assert.Equal(t, "Bearer token", got.Get("Authorization"))
	assert.Equal(t, "d1", got.Get("X-Device"))
	assert.Equal(t, "eu", got.Get("X-Region"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Len(t, got.Get(HeaderRequestID), 36)
}

func TestRequest_RequestIDUnique(t *testing.T) {
	c, mt := newMockClient(t, &Config{})

	ids := make(map[string]bool)
	mt.RegisterResponder(http.MethodGet, testBase+"/x", func(r *http.Request) (*http.Response, error) {
		ids[r.Header.Get(HeaderRequestID)] = true
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), "/x")
		require.NoError(t, err)
	}
	assert.Len(t, ids, 5)
}

func TestRequest_Query(t *testing.T) {
	c, mt := newMockClient(t, &Config{})

	var query string
	mt.RegisterResponder(http.MethodGet, testBase+"/api/devices", func(r *http.Request) (*http.Response, error) {
		query = r.URL.RawQuery
		return httpmock.NewStringResponse(http.StatusOK, "[]"), nil
	})

	_, err := c.Get(context.Background(), "/api/devices?fixed=1", WithQuery(map[string]string{"page": "2", "size": "10"}))
	require.NoError(t, err)
	assert.Equal(t, "fixed=1&page=2&size=10", query)
}

func TestPost_JSONBody(t *testing.T) {
	c, mt := newMockClient(t, &Config{})

	var (
		contentType string
		payload     map[string]any
	)
	mt.RegisterResponder(http.MethodPost, testBase+"/api/commands", func(r *http.Request) (*http.Response, error) {
		contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &payload)
		return httpmock.NewStringResponse(http.StatusAccepted, ""), nil
	})

	resp, err := c.Post(context.Background(), "/api/commands", WithJSON(map[string]any{"command": "play", "volume": 5}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "play", payload["command"])
	assert.EqualValues(t, 5, payload["volume"])
}

func TestPutDelete_RawBody(t *testing.T) {
	c, mt := newMockClient(t, &Config{})

	mt.RegisterResponder(http.MethodPut, testBase+"/notes/1", func(r *http.Request) (*http.Response, error) {
		data, _ := io.ReadAll(r.Body)
		return httpmock.NewStringResponse(http.StatusOK, r.Header.Get("Content-Type")+"|"+string(data)), nil
	})
	mt.RegisterResponder(http.MethodDelete, testBase+"/notes/1", httpmock.NewStringResponder(http.StatusNoContent, ""))

	resp, err := c.Put(context.Background(), "/notes/1", WithBody("text/plain", []byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, "text/plain|hello", resp.Text())

	resp, err = c.Delete(context.Background(), "/notes/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Bytes())
}

func TestRaiseForStatus(t *testing.T) {
	c, mt := newMockClient(t, &Config{})
	mt.RegisterResponder(http.MethodGet, testBase+"/missing", httpmock.NewStringResponder(http.StatusNotFound, `{"error":"no such device"}`))

	resp, err := c.Get(context.Background(), "/missing")
	require.NoError(t, err)

	err = resp.RaiseForStatus()
	require.Error(t, err)

	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, http.MethodGet, se.Method)
	assert.Contains(t, se.URL, "/missing")
	assert.Contains(t, se.Body, "no such device")
	assert.Contains(t, err.Error(), "404")
}

func TestResponse_JSONDecodeError(t *testing.T) {
	c, mt := newMockClient(t, &Config{})
	mt.RegisterResponder(http.MethodGet, testBase+"/bad", httpmock.NewStringResponder(http.StatusOK, "<html>"))

	resp, err := c.Get(context.Background(), "/bad")
	require.NoError(t, err)

	var v map[string]any
	err = resp.JSON(&v)
	assert.True(t, xerrors.Is(err, ErrDecode))
}

func TestTransportError(t *testing.T) {
	c, mt := newMockClient(t, &Config{})
	mt.RegisterResponder(http.MethodGet, testBase+"/down", httpmock.NewErrorResponder(io.ErrUnexpectedEOF))

	_, err := c.Get(context.Background(), "/down")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, io.ErrUnexpectedEOF))
}

func TestRelativeURLWithoutBase(t *testing.T) {
	c, err := New(&Config{})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/api/devices")
	assert.True(t, xerrors.Is(err, ErrInvalidURL))
}

func TestResponseTooLarge(t *testing.T) {
	c, mt := newMockClient(t, &Config{MaxResponseBytes: 8})
	mt.RegisterResponder(http.MethodGet, testBase+"/big", httpmock.NewStringResponder(http.StatusOK, strings.Repeat("x", 9)))
	mt.RegisterResponder(http.MethodGet, testBase+"/fits", httpmock.NewStringResponder(http.StatusOK, strings.Repeat("x", 8)))

	_, err := c.Get(context.Background(), "/big")
	assert.True(t, xerrors.Is(err, ErrResponseTooLarge))

	resp, err := c.Get(context.Background(), "/fits")
	require.NoError(t, err)
	assert.Len(t, resp.Bytes(), 8)
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c, err := New(&Config{BaseURL: srv.URL})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Get(context.Background(), "/slow", WithTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, xerrors.ErrTimeout)

	// 调用方自己的 ctx 到期不归为请求超时
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, "/slow")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimit(t *testing.T) {
	c, mt := newMockClient(t, &Config{RateLimit: 1, RateBurst: 1})
	mt.RegisterResponder(http.MethodGet, testBase+"/x", httpmock.NewStringResponder(http.StatusOK, ""))

	_, err := c.Get(context.Background(), "/x")
	require.NoError(t, err)

	// 令牌耗尽后在截止时间内拿不到令牌
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, "/x")
	require.Error(t, err)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestCookieJar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return
		}
		cookie, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(cookie.Value))
	}))
	defer srv.Close()

	c, err := New(&Config{BaseURL: srv.URL, CookieJar: true})
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "/login")
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), "/me")
	require.NoError(t, err)
	require.NoError(t, resp.RaiseForStatus())
	assert.Equal(t, "abc", resp.Text())
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	d, ok := parseRetryAfter("30", now)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	d, ok = parseRetryAfter(now.Add(time.Minute).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, d)

	_, ok = parseRetryAfter("", now)
	assert.False(t, ok)
	_, ok = parseRetryAfter("soon", now)
	assert.False(t, ok)
	_, ok = parseRetryAfter("-5", now)
	assert.False(t, ok)

	// 超大秒数不能溢出为负值
	for _, v := range []string{"9223372036", "9223372037", "99999999999999999999"} {
		d, ok = parseRetryAfter(v, now)
		assert.True(t, ok, v)
		assert.Greater(t, d, time.Duration(0), v)
	}

	resp := &Response{Header: http.Header{"Retry-After": []string{"2"}}}
	d, ok = resp.RetryAfter()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	meter, err := metrics.New(&metrics.Config{Enabled: true}, metrics.WithRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })

	c, mt := newMockClient(t, &Config{}, WithMeter(meter))
	mt.RegisterResponder(http.MethodGet, testBase+"/ok", httpmock.NewStringResponder(http.StatusOK, ""))
	mt.RegisterResponder(http.MethodGet, testBase+"/fail", httpmock.NewStringResponder(http.StatusBadGateway, ""))

	_, err = c.Get(context.Background(), "/ok")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/fail")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, metrics.MetricHTTPClientRequestTotal)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
