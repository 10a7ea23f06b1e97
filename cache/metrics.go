package cache

import (
	"context"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

const (
	MetricHitsTotal          = "cache_hits_total"
	MetricMissesTotal        = "cache_misses_total"
	MetricWritesTotal        = "cache_writes_total"
	MetricInvalidationsTotal = "cache_invalidations_total"

	LabelTier = "tier"

	tierMemory = "memory"
	tierDisk   = "disk"
)

type instruments struct {
	hits          metrics.Counter
	misses        metrics.Counter
	writes        metrics.Counter
	invalidations metrics.Counter
}

func newInstruments(m metrics.Meter, logger clog.Logger) *instruments {
	counter := func(name, desc string) metrics.Counter {
		c, err := m.Counter(name, desc)
		if err != nil {
			logger.Warn("failed to create counter", clog.String("metric", name), clog.Error(err))
			c, _ = metrics.Discard().Counter(name, desc)
		}
		return c
	}
	return &instruments{
		hits:          counter(MetricHitsTotal, "Cache hits by tier"),
		misses:        counter(MetricMissesTotal, "Cache misses"),
		writes:        counter(MetricWritesTotal, "Cache writes"),
		invalidations: counter(MetricInvalidationsTotal, "Cache invalidations"),
	}
}

func (i *instruments) hit(ctx context.Context, tier string) {
	i.hits.Inc(ctx, metrics.L(LabelTier, tier))
}
