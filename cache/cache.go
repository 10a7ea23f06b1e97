// Package cache 提供两级（内存 + 磁盘）的 TTL 缓存。
//
// 磁盘层每个 key 一个数据文件（data/<key>.json 或压缩后的 data/<key>.json.gz），
// 外加一个共享的元数据索引 cache_metadata.json，记录每个 key 的写入时间与过期时间。
// 内存层基于 otter，保存已序列化的负载，命中时免去读盘与解压。
//
// 所有读写经同一把互斥锁串行化，适合客户端进程内的中小规模数据。
// 读写失败只记录日志并退化为未命中，不向调用方抛错。
//
// 基本使用：
//
//	c, err := cache.New(&cache.Config{Dir: dir, Codec: cache.CodecGzip}, cache.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	_ = c.Set(ctx, "devices", devices, time.Minute)
//
//	var got DeviceList
//	if c.Get(ctx, "devices", &got) {
//	    ...
//	}
//
//	// 过期后仍可在 MaxStale 范围内读取旧值
//	c.Get(ctx, "devices", &got, cache.WithIgnoreTTL())
package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ceyewan/warden/cache/serializer"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/xerrors"
)

// Cache 两级缓存，并发安全
type Cache struct {
	cfg    Config
	ser    serializer.Serializer
	codec  codec
	mem    *memoryTier
	logger clog.Logger
	inst   *instruments
	now    func() time.Time

	mu        sync.Mutex
	index     map[string]indexEntry
	counters  counters
	closeOnce sync.Once
}

// New 创建缓存，启动时会修复索引与数据文件的不一致
func New(cfg *Config, opts ...Option) (*Cache, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "config is nil")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ser, err := serializer.New(c.Serializer)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(c.Dir, DataDir), 0o755); err != nil {
		return nil, xerrors.Wrapf(err, "create cache dir %s", c.Dir)
	}

	mem, err := newMemoryTier(c.MemoryCapacity)
	if err != nil {
		return nil, err
	}

	cache := &Cache{
		cfg:    c,
		ser:    ser,
		codec:  newCodec(&c),
		mem:    mem,
		logger: o.logger,
		inst:   newInstruments(o.meter, o.logger),
		now:    o.now,
	}

	index, err := loadIndex(c.Dir)
	if err != nil {
		cache.logger.Warn("cache index unreadable, starting empty", clog.Error(err))
		index = make(map[string]indexEntry)
	}
	cache.index = index
	cache.repair()

	cache.logger.Info("cache opened",
		clog.String("dir", c.Dir),
		clog.String("codec", cache.codec.name()),
		clog.String("serializer", ser.Name()),
		clog.Int("entries", len(index)))

	return cache, nil
}

// repair 丢弃缺少数据文件的索引条目，删除索引之外的数据文件
func (c *Cache) repair() {
	changed := false
	expected := make(map[string]bool, len(c.index))
	for key, e := range c.index {
		path := c.dataPath(key, e.Compressed)
		if _, err := os.Stat(path); err != nil {
			delete(c.index, key)
			changed = true
			c.logger.Warn("dropping index entry without data file", clog.String("key", key))
			continue
		}
		expected[filepath.Base(path)] = true
	}

	// 根目录只清理索引写入残留的临时文件
	c.removeOrphans(c.cfg.Dir, func(name string) bool {
		return strings.HasPrefix(name, ".tmp-")
	})
	c.removeOrphans(filepath.Join(c.cfg.Dir, DataDir), func(name string) bool {
		if expected[name] {
			return false
		}
		return strings.HasPrefix(name, ".tmp-") || c.isDataFile(name)
	})

	if changed {
		if err := saveIndex(c.cfg.Dir, c.index); err != nil {
			c.logger.Error("failed to save repaired index", clog.Error(err))
		}
	}
}

func (c *Cache) removeOrphans(dir string, orphan func(name string) bool) {
	files, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("failed to scan cache dir", clog.String("dir", dir), clog.Error(err))
		return
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !orphan(name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			c.logger.Warn("failed to remove orphan file", clog.String("file", name), clog.Error(err))
			continue
		}
		c.logger.Debug("removed orphan cache file", clog.String("file", name))
	}
}

func (c *Cache) isDataFile(name string) bool {
	ext := "." + c.ser.Name()
	return strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".gz")
}

func (c *Cache) dataPath(key string, compressed bool) string {
	name := key + "." + c.ser.Name()
	if compressed {
		name += ".gz"
	}
	return filepath.Join(c.cfg.Dir, DataDir, name)
}

// memoryTTL 内存层保留到 expires_at + MaxStale
func (c *Cache) memoryTTL(expiresAt, now time.Time) time.Duration {
	if c.cfg.MaxStale < 0 {
		return 0
	}
	return expiresAt.Sub(now) + c.cfg.MaxStale
}

// Get 读取 key 并解码到 dest，命中返回 true
//
// 默认过期即未命中；WithIgnoreTTL 时在 MaxStale 范围内仍返回旧值。
func (c *Cache) Get(ctx context.Context, key string, dest any, opts ...GetOption) bool {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	key = Sanitize(key)
	tier, ok := c.get(key, dest, o)
	if !ok {
		c.inst.misses.Inc(ctx)
		return false
	}
	c.inst.hit(ctx, tier)
	return true
}

func (c *Cache) get(key string, dest any, o getOptions) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok {
		c.counters.misses++
		return "", false
	}

	now := c.now()
	expiresAt := e.expiresAt()
	if now.After(expiresAt) {
		if !o.ignoreTTL || (c.cfg.MaxStale >= 0 && now.After(expiresAt.Add(c.cfg.MaxStale))) {
			c.counters.misses++
			return "", false
		}
	}

	tier := tierMemory
	data, ok := c.mem.get(key)
	if !ok {
		tier = tierDisk
		raw, err := os.ReadFile(c.dataPath(key, e.Compressed))
		if err != nil {
			c.logger.Warn("cache read failed", clog.String("key", key), clog.Error(err))
			c.counters.misses++
			return "", false
		}
		data, err = codecFor(e.Compressed).decode(raw)
		if err != nil {
			c.logger.Warn("cache decode failed", clog.String("key", key), clog.Error(err))
			c.counters.misses++
			return "", false
		}
		c.mem.set(key, data, c.memoryTTL(expiresAt, now))
	}

	if err := c.ser.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache unmarshal failed", clog.String("key", key), clog.Error(err))
		c.mem.invalidate(key)
		c.counters.misses++
		return "", false
	}

	c.counters.hits++
	if tier == tierMemory {
		c.counters.memoryHits++
	}
	return tier, true
}

// Set 写入 key，ttl <= 0 时使用 DefaultTTL
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	key = Sanitize(key)
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	data, err := c.ser.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "serialize cache value %s", key)
	}
	encoded, err := c.codec.encode(data)
	if err != nil {
		return xerrors.Wrapf(err, "encode cache value %s", key)
	}

	if err := c.set(key, data, encoded, ttl); err != nil {
		c.logger.Error("cache write failed", clog.String("key", key), clog.Error(err))
		return err
	}

	c.inst.writes.Inc(ctx)
	return nil
}

func (c *Cache) set(key string, data, encoded []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	compressed := c.codec.compressed()
	if err := writeFileAtomic(c.dataPath(key, compressed), encoded); err != nil {
		return err
	}
	// 编码方式变更后旧格式文件不再有效
	if err := os.Remove(c.dataPath(key, !compressed)); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("failed to remove stale variant", clog.String("key", key), clog.Error(err))
	}

	now := c.now()
	ratio := 1.0
	if len(data) > 0 {
		ratio = float64(len(encoded)) / float64(len(data))
	}
	c.index[key] = indexEntry{
		Timestamp:        toUnix(now),
		TTL:              ttl.Seconds(),
		ExpiresAt:        toUnix(now.Add(ttl)),
		SizeBytes:        int64(len(encoded)),
		Compressed:       compressed,
		OriginalSize:     int64(len(data)),
		CompressionRatio: ratio,
	}
	c.mem.set(key, data, c.memoryTTL(now.Add(ttl), now))
	c.counters.writes++

	return saveIndex(c.cfg.Dir, c.index)
}

// Invalidate 删除 key 的数据文件、索引条目与内存条目
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	key = Sanitize(key)

	c.mu.Lock()
	existed, err := c.removeLocked(key)
	if existed {
		if saveErr := saveIndex(c.cfg.Dir, c.index); saveErr != nil {
			err = xerrors.Combine(err, saveErr)
		}
	}
	c.mu.Unlock()

	if existed {
		c.inst.invalidations.Inc(ctx)
	}
	if err != nil {
		c.logger.Warn("cache invalidate failed", clog.String("key", key), clog.Error(err))
	}
	return err
}

// removeLocked 调用方持有 mu，不写索引
func (c *Cache) removeLocked(key string) (bool, error) {
	_, existed := c.index[key]
	delete(c.index, key)
	c.mem.invalidate(key)

	var errs []error
	for _, compressed := range []bool{false, true} {
		err := os.Remove(c.dataPath(key, compressed))
		switch {
		case err == nil:
			existed = true
		case !errors.Is(err, os.ErrNotExist):
			errs = append(errs, err)
		}
	}
	if existed {
		c.counters.invalidations++
	}
	return existed, xerrors.Combine(errs...)
}

// ClearAllExcept 删除除 preserve 之外的全部条目，返回删除数量
func (c *Cache) ClearAllExcept(ctx context.Context, preserve ...string) int {
	keep := make(map[string]bool, len(preserve))
	for _, k := range preserve {
		keep[Sanitize(k)] = true
	}
	return c.removeWhere(ctx, func(key string, _ indexEntry) bool {
		return !keep[key]
	})
}

// CleanExpired 删除所有已过 expires_at 的条目，返回删除数量
func (c *Cache) CleanExpired(ctx context.Context) int {
	now := c.now()
	return c.removeWhere(ctx, func(_ string, e indexEntry) bool {
		return now.After(e.expiresAt())
	})
}

func (c *Cache) removeWhere(ctx context.Context, match func(string, indexEntry) bool) int {
	c.mu.Lock()
	removed := 0
	for key, e := range c.index {
		if !match(key, e) {
			continue
		}
		if _, err := c.removeLocked(key); err != nil {
			c.logger.Warn("cache remove failed", clog.String("key", key), clog.Error(err))
		}
		removed++
	}
	if removed > 0 {
		if err := saveIndex(c.cfg.Dir, c.index); err != nil {
			c.logger.Error("failed to save cache index", clog.Error(err))
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.inst.invalidations.Add(ctx, float64(removed))
		c.logger.Info("cache entries removed", clog.Int("count", removed))
	}
	return removed
}

// Stats 返回统计快照
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:          c.counters.hits,
		MemoryHits:    c.counters.memoryHits,
		Misses:        c.counters.misses,
		Writes:        c.counters.writes,
		Invalidations: c.counters.invalidations,
		Entries:       len(c.index),
		Compression:   c.codec.name(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}

	var ratioSum float64
	var compressed int
	for _, e := range c.index {
		s.TotalBytes += e.SizeBytes
		if e.Compressed {
			ratioSum += e.CompressionRatio
			compressed++
		}
	}
	if compressed > 0 {
		s.AvgCompressionRatio = ratioSum / float64(compressed)
	}
	return s
}

// Dir 缓存目录
func (c *Cache) Dir() string {
	return c.cfg.Dir
}

// Close 停止内存层的后台 goroutine，磁盘数据保留
func (c *Cache) Close() {
	c.closeOnce.Do(c.mem.close)
}
