package cache

import (
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/warden/xerrors"
)

// noExpiry MaxStale 不限时内存层使用的过期时间（100 年）
const noExpiry = 24 * 365 * 100 * time.Hour

// memoryTier 保存已序列化（未压缩）的负载，避免重复读盘与解压
//
// 新鲜度以索引为准，这里只是加速层。
type memoryTier struct {
	cache *otter.Cache[string, []byte]
}

func newMemoryTier(capacity int) (*memoryTier, error) {
	c, err := otter.New(&otter.Options[string, []byte]{
		MaximumSize:   capacity,
		StatsRecorder: stats.NewCounter(),
		// 过期从写入开始计算，读取不续期；具体时间在 set 时覆盖
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](noExpiry),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build otter cache")
	}
	return &memoryTier{cache: c}, nil
}

func (m *memoryTier) get(key string) ([]byte, bool) {
	return m.cache.GetIfPresent(key)
}

func (m *memoryTier) set(key string, data []byte, ttl time.Duration) {
	m.cache.Set(key, data)
	if ttl > 0 {
		m.cache.SetExpiresAfter(key, ttl)
	}
}

func (m *memoryTier) invalidate(key string) {
	m.cache.Invalidate(key)
}

func (m *memoryTier) close() {
	m.cache.StopAllGoroutines()
}
