package guard

import (
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

const (
	MetricCallsTotal       = "guard_calls_total"
	MetricEscalationsTotal = "guard_escalations_total"

	LabelCategory = "category"
	LabelOutcome  = "outcome"
	LabelState    = "state"
)

func newCounter(m metrics.Meter, logger clog.Logger, name, desc string) metrics.Counter {
	c, err := m.Counter(name, desc)
	if err != nil {
		logger.Warn("failed to create counter", clog.String("metric", name), clog.Error(err))
		c, _ = metrics.Discard().Counter(name, desc)
	}
	return c
}
