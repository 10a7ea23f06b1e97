package breaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

var errBoom = errors.New("boom")

func failing(calls *int32) func(context.Context) error {
	return func(context.Context) error {
		atomic.AddInt32(calls, 1)
		return errBoom
	}
}

func succeeding(calls *int32) func(context.Context) error {
	return func(context.Context) error {
		atomic.AddInt32(calls, 1)
		return nil
	}
}

func newTestBreaker(t *testing.T, cfg Config) *CircuitBreaker {
	t.Helper()
	cb, err := New("test", cfg, WithLogger(clog.Discard()))
	require.NoError(t, err)
	return cb
}

func TestNew(t *testing.T) {
	_, err := New("", Config{})
	assert.ErrorIs(t, err, ErrNameEmpty)

	cb, err := New("devices", Config{})
	require.NoError(t, err)
	assert.Equal(t, "devices", cb.Name())
	assert.Equal(t, uint32(5), cb.Config().FailureThreshold)
	assert.Equal(t, 60*time.Second, cb.Config().Timeout)
	assert.Equal(t, uint32(1), cb.Config().HalfOpenMaxCalls)
	assert.Equal(t, StateClosed, cb.State())
}

func TestClosedSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(t, Config{FailureThreshold: 3, Timeout: time.Second})
	ctx := context.Background()
	var calls int32

	require.Error(t, cb.Call(ctx, failing(&calls)))
	require.Error(t, cb.Call(ctx, failing(&calls)))
	assert.Equal(t, 2, cb.Snapshot().FailureCount)
	assert.False(t, cb.Snapshot().LastFailureTime.IsZero())

	require.NoError(t, cb.Call(ctx, succeeding(&calls)))
	assert.Equal(t, 0, cb.Snapshot().FailureCount)
	assert.Equal(t, StateClosed, cb.State())
}

func TestTripsAfterThreshold(t *testing.T) {
	cb := newTestBreaker(t, Config{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()
	var calls int32

	for i := 0; i < 3; i++ {
		err := cb.Call(ctx, failing(&calls))
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, int32(3), calls)

	err := cb.Call(ctx, failing(&calls))
	assert.ErrorIs(t, err, ErrOpenState)
	assert.True(t, IsRejected(err))
	assert.Equal(t, int32(3), calls, "fn must not run while open")
	assert.Equal(t, 3, cb.Snapshot().FailureCount)
}

func TestHalfOpenProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("探测成功回到 Closed", func(t *testing.T) {
		cb := newTestBreaker(t, Config{FailureThreshold: 2, Timeout: 50 * time.Millisecond})
		var calls int32
		_ = cb.Call(ctx, failing(&calls))
		_ = cb.Call(ctx, failing(&calls))
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Call(ctx, succeeding(&calls)))
		snap := cb.Snapshot()
		assert.Equal(t, StateClosed, snap.State)
		assert.Equal(t, 0, snap.FailureCount)
	})

	t.Run("探测失败回到 Open", func(t *testing.T) {
		cb := newTestBreaker(t, Config{FailureThreshold: 2, Timeout: 50 * time.Millisecond})
		var calls int32
		_ = cb.Call(ctx, failing(&calls))
		_ = cb.Call(ctx, failing(&calls))
		first := cb.Snapshot().LastFailureTime

		time.Sleep(80 * time.Millisecond)
		assert.ErrorIs(t, cb.Call(ctx, failing(&calls)), errBoom)
		assert.Equal(t, StateOpen, cb.State())
		assert.True(t, cb.Snapshot().LastFailureTime.After(first))

		assert.ErrorIs(t, cb.Call(ctx, succeeding(&calls)), ErrOpenState)
	})

	t.Run("探测名额已满", func(t *testing.T) {
		cb := newTestBreaker(t, Config{FailureThreshold: 1, Timeout: 50 * time.Millisecond, HalfOpenMaxCalls: 1})
		var calls int32
		_ = cb.Call(ctx, failing(&calls))
		time.Sleep(80 * time.Millisecond)

		release := make(chan struct{})
		started := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Call(ctx, func(context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		assert.Equal(t, 1, cb.Snapshot().HalfOpenCalls)

		var extra int32
		err := cb.Call(ctx, succeeding(&extra))
		assert.ErrorIs(t, err, ErrTooManyRequests)
		assert.True(t, IsRejected(err))
		assert.Equal(t, int32(0), extra)

		close(release)
		wg.Wait()
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("多个探测全部成功才关闭", func(t *testing.T) {
		cb := newTestBreaker(t, Config{FailureThreshold: 1, Timeout: 50 * time.Millisecond, HalfOpenMaxCalls: 2})
		var calls int32
		_ = cb.Call(ctx, failing(&calls))
		time.Sleep(80 * time.Millisecond)

		require.NoError(t, cb.Call(ctx, succeeding(&calls)))
		assert.Equal(t, StateHalfOpen, cb.State())
		require.NoError(t, cb.Call(ctx, succeeding(&calls)))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 0, cb.Snapshot().FailureCount)
	})
}

// threshold=3, timeout=1s：三次失败熔断，立即第四次被拒，1.1s 后一次成功恢复
func TestEndToEndRecovery(t *testing.T) {
	cb := newTestBreaker(t, Config{FailureThreshold: 3, Timeout: time.Second})
	ctx := context.Background()
	var calls int32

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, failing(&calls))
	}
	require.Equal(t, StateOpen, cb.State())

	err := cb.Call(ctx, succeeding(&calls))
	require.ErrorIs(t, err, ErrOpenState)
	assert.Equal(t, int32(3), calls)

	time.Sleep(1100 * time.Millisecond)

	require.NoError(t, cb.Call(ctx, succeeding(&calls)))
	snap := cb.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.FailureCount)
}

func TestExcludedErrors(t *testing.T) {
	cb := newTestBreaker(t, Config{FailureThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()
	notFound := errors.New("404")

	for i := 0; i < 5; i++ {
		err := cb.Call(ctx, func(context.Context) error { return Exclude(notFound) })
		assert.ErrorIs(t, err, notFound)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Snapshot().FailureCount)
	assert.Nil(t, Exclude(nil))
}

func TestReset(t *testing.T) {
	cb := newTestBreaker(t, Config{FailureThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()
	var calls int32

	_ = cb.Call(ctx, failing(&calls))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	snap := cb.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.FailureCount)
	assert.True(t, snap.LastFailureTime.IsZero())

	require.NoError(t, cb.Call(ctx, succeeding(&calls)))
}

func TestCanceledContext(t *testing.T) {
	cb := newTestBreaker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := cb.Call(ctx, succeeding(&calls))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls)
}

func TestCanceledDuringCall(t *testing.T) {
	cb := newTestBreaker(t, Config{FailureThreshold: 2, Timeout: time.Minute})

	// fn 执行中调用方取消，返回的错误不计入失败
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		err := cb.Call(ctx, func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Snapshot().FailureCount)

	// 调用方未取消时，同样的错误照常计数
	var calls int32
	_ = cb.Call(context.Background(), failing(&calls))
	assert.Equal(t, 1, cb.Snapshot().FailureCount)
}

func TestSnapshotFailureCountConcurrent(t *testing.T) {
	cb := newTestBreaker(t, Config{FailureThreshold: 1000, Timeout: time.Minute})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var calls int32
			for j := 0; j < 50; j++ {
				if (i+j)%2 == 0 {
					_ = cb.Call(ctx, failing(&calls))
				} else {
					_ = cb.Call(ctx, succeeding(&calls))
				}
			}
		}(i)
	}
	wg.Wait()

	// 最后一次成功后计数归零，结束于失败时等于连续失败数，与 gobreaker 一致
	cb.mu.Lock()
	want := int(cb.gb.Counts().ConsecutiveFailures)
	cb.mu.Unlock()
	assert.Equal(t, want, cb.Snapshot().FailureCount)

	require.NoError(t, cb.Call(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, 0, cb.Snapshot().FailureCount)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	meter, err := metrics.New(&metrics.Config{Enabled: true}, metrics.WithRegistry(reg))
	require.NoError(t, err)
	defer meter.Shutdown(context.Background())

	cb, err := New("metrics", Config{FailureThreshold: 1, Timeout: time.Minute}, WithMeter(meter))
	require.NoError(t, err)

	ctx := context.Background()
	var calls int32
	_ = cb.Call(ctx, failing(&calls))
	_ = cb.Call(ctx, failing(&calls))

	for _, name := range []string{MetricFailuresTotal, MetricRejectsTotal, MetricStateChanges} {
		count, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equal(t, 1, count, name)
	}
}
