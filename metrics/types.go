// Package metrics 为 warden 提供统一的指标收集能力。
//
// 基于 OpenTelemetry 构建，通过 Prometheus exporter 暴露。
// 禁用时返回 noop 实现，调用方无需判空：
//
//	meter, err := metrics.New(&metrics.Config{Enabled: true, Port: 9090})
//	if err != nil {
//	    return err
//	}
//	defer meter.Shutdown(ctx)
//
//	hits, _ := meter.Counter("cache_hits_total", "Cache hits")
//	hits.Inc(ctx, metrics.L("tier", "memory"))
package metrics

import "context"

// Counter 只增不减的累计值
type Counter interface {
	// Inc 增加 1
	Inc(ctx context.Context, labels ...Label)
	// Add 增加指定值，val 必须为正数
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可增可减的瞬时值
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 记录值的分布，例如请求耗时
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂
//
// 通过 Meter 创建的指标是并发安全的。
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 刷新指标并关闭 Prometheus 服务器
	Shutdown(ctx context.Context) error
}

// MetricOption 指标创建选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	// Unit 单位，建议使用 UCUM 代码，如 "s"、"By"
	Unit string
	// Buckets 直方图的显式桶边界，仅对 Histogram 生效
	Buckets []float64
}

// WithUnit 设置指标单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置直方图桶边界
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}
