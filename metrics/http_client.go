package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ceyewan/warden/xerrors"
)

const (
	MetricHTTPClientRequestTotal    = "http_client_requests_total"
	MetricHTTPClientDurationSeconds = "http_client_request_duration_seconds"
)

var defaultHTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// HTTPClientMetricsConfig HTTP 客户端 RED 指标配置
type HTTPClientMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	DurationBuckets     []float64
	StaticLabels        []Label
}

// DefaultHTTPClientMetricsConfig 返回默认配置
func DefaultHTTPClientMetricsConfig(service string) *HTTPClientMetricsConfig {
	return &HTTPClientMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricHTTPClientRequestTotal,
		RequestDurationName: MetricHTTPClientDurationSeconds,
		DurationBuckets:     defaultHTTPDurationBuckets,
	}
}

// HTTPClientMetrics 出站 HTTP 请求的 RED 指标集
type HTTPClientMetrics struct {
	service      string
	requestTotal Counter
	duration     Histogram
	staticLabels []Label
}

// NewHTTPClientMetrics 创建 HTTP 客户端指标
func NewHTTPClientMetrics(m Meter, cfg *HTTPClientMetricsConfig) (*HTTPClientMetrics, error) {
	if m == nil {
		return nil, xerrors.New("meter is nil")
	}
	if cfg == nil {
		return nil, xerrors.New("config is nil")
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "unknown"
	}

	requestTotalName := strings.TrimSpace(cfg.RequestTotalName)
	if requestTotalName == "" {
		requestTotalName = MetricHTTPClientRequestTotal
	}

	requestDurationName := strings.TrimSpace(cfg.RequestDurationName)
	if requestDurationName == "" {
		requestDurationName = MetricHTTPClientDurationSeconds
	}

	counter, err := m.Counter(requestTotalName, "Total number of outbound HTTP requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request counter")
	}

	histogramOpts := []MetricOption{WithUnit("s")}
	if len(cfg.DurationBuckets) > 0 {
		histogramOpts = append(histogramOpts, WithBuckets(cfg.DurationBuckets))
	}
	duration, err := m.Histogram(requestDurationName, "Outbound HTTP request duration in seconds.", histogramOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request duration histogram")
	}

	static := make([]Label, len(cfg.StaticLabels))
	copy(static, cfg.StaticLabels)

	return &HTTPClientMetrics{
		service:      service,
		requestTotal: counter,
		duration:     duration,
		staticLabels: static,
	}, nil
}

// Observe 记录一次出站请求，status 为 0 表示未收到响应
func (m *HTTPClientMetrics) Observe(ctx context.Context, method string, host string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	safeMethod := strings.ToUpper(strings.TrimSpace(method))
	if safeMethod == "" {
		safeMethod = http.MethodGet
	}

	safeHost := strings.TrimSpace(host)
	if safeHost == "" {
		safeHost = "unknown"
	}

	labels := make([]Label, 0, len(m.staticLabels)+6)
	labels = append(labels, m.staticLabels...)
	labels = append(labels,
		L(LabelService, m.service),
		L(LabelOperation, OperationHTTPClient),
		L(LabelMethod, safeMethod),
		L(LabelHost, safeHost),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)

	m.requestTotal.Inc(ctx, labels...)
	m.duration.Record(ctx, duration.Seconds(), labels...)
}
