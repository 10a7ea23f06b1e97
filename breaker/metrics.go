package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

const (
	// MetricRequestsTotal 请求总数 (Counter)
	MetricRequestsTotal = "breaker_requests_total"

	// MetricSuccessTotal 成功请求数 (Counter)
	MetricSuccessTotal = "breaker_success_total"

	// MetricFailuresTotal 失败请求数 (Counter)
	MetricFailuresTotal = "breaker_failures_total"

	// MetricRejectsTotal 被熔断拒绝的请求数 (Counter)
	MetricRejectsTotal = "breaker_rejects_total"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker_state_changes_total"

	// MetricRequestDuration 请求耗时 (Histogram)
	MetricRequestDuration = "breaker_request_duration_seconds"

	LabelBreaker   = "breaker"
	LabelState     = "state"
	LabelFromState = "from_state"
	LabelToState   = "to_state"
)

type instruments struct {
	requests     metrics.Counter
	success      metrics.Counter
	failures     metrics.Counter
	rejects      metrics.Counter
	stateChanges metrics.Counter
	duration     metrics.Histogram
}

// newInstruments 创建失败的指标降级为 noop
func newInstruments(m metrics.Meter, logger clog.Logger) *instruments {
	noop := metrics.Discard()
	counter := func(name, desc string) metrics.Counter {
		c, err := m.Counter(name, desc)
		if err != nil {
			logger.Warn("failed to create counter", clog.String("metric", name), clog.Error(err))
			c, _ = noop.Counter(name, desc)
		}
		return c
	}

	duration, err := m.Histogram(MetricRequestDuration, "Protected call duration in seconds", metrics.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create histogram", clog.String("metric", MetricRequestDuration), clog.Error(err))
		duration, _ = noop.Histogram(MetricRequestDuration, "")
	}

	return &instruments{
		requests:     counter(MetricRequestsTotal, "Total protected calls"),
		success:      counter(MetricSuccessTotal, "Successful protected calls"),
		failures:     counter(MetricFailuresTotal, "Failed protected calls"),
		rejects:      counter(MetricRejectsTotal, "Calls rejected by an open or saturated breaker"),
		stateChanges: counter(MetricStateChanges, "Breaker state changes"),
		duration:     duration,
	}
}

func (i *instruments) observe(ctx context.Context, name string, err error, d time.Duration) {
	label := metrics.L(LabelBreaker, name)
	i.requests.Inc(ctx, label)
	i.duration.Record(ctx, d.Seconds(), label)
	if err != nil && !isExcluded(err) {
		i.failures.Inc(ctx, label)
		return
	}
	i.success.Inc(ctx, label)
}

func (i *instruments) reject(ctx context.Context, name string, state State) {
	label := metrics.L(LabelBreaker, name)
	i.requests.Inc(ctx, label)
	i.rejects.Inc(ctx, label, metrics.L(LabelState, state.String()))
}

func (i *instruments) stateChange(ctx context.Context, name string, from, to State) {
	i.stateChanges.Inc(ctx,
		metrics.L(LabelBreaker, name),
		metrics.L(LabelFromState, from.String()),
		metrics.L(LabelToState, to.String()))
}
