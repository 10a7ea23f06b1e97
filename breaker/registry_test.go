package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry(&RegistryConfig{
		Default: Config{FailureThreshold: 5, Timeout: 30 * time.Second},
		Policies: map[string]Config{
			"playback": {FailureThreshold: 2},
		},
	})

	a := reg.Get("devices")
	assert.Same(t, a, reg.Get("devices"))
	assert.Equal(t, uint32(5), a.Config().FailureThreshold)

	p := reg.Get("playback")
	assert.Equal(t, uint32(2), p.Config().FailureThreshold)
	assert.Equal(t, 30*time.Second, p.Config().Timeout)

	assert.Equal(t, "default", reg.Get("").Name())
	assert.Equal(t, []string{"default", "devices", "playback"}, reg.Names())
}

func TestRegistryNilConfig(t *testing.T) {
	reg := NewRegistry(nil)
	assert.Equal(t, uint32(5), reg.Get("x").Config().FailureThreshold)
}

func TestRegistryConcurrentGet(t *testing.T) {
	reg := NewRegistry(nil)
	var wg sync.WaitGroup
	got := make([]*CircuitBreaker, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.Get("alarms")
		}(i)
	}
	wg.Wait()

	for _, cb := range got {
		assert.Same(t, got[0], cb)
	}
}

func TestRegistrySnapshotsAndResetAll(t *testing.T) {
	reg := NewRegistry(&RegistryConfig{Default: Config{FailureThreshold: 1, Timeout: time.Minute}})
	ctx := context.Background()
	var calls int32

	_ = reg.Get("b").Call(ctx, failing(&calls))
	_ = reg.Get("a").Call(ctx, succeeding(&calls))

	snaps := reg.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].Name)
	assert.Equal(t, StateClosed, snaps[0].State)
	assert.Equal(t, "b", snaps[1].Name)
	assert.Equal(t, StateOpen, snaps[1].State)
	assert.Equal(t, 1, snaps[1].FailureCount)

	reg.ResetAll()
	for _, s := range reg.Snapshots() {
		assert.Equal(t, StateClosed, s.State)
		assert.Equal(t, 0, s.FailureCount)
	}
}
