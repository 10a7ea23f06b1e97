package cache

// Stats 缓存统计
type Stats struct {
	Hits          int64   `json:"hits"`
	MemoryHits    int64   `json:"memory_hits"`
	Misses        int64   `json:"misses"`
	Writes        int64   `json:"writes"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
	Entries       int     `json:"entries"`
	TotalBytes    int64   `json:"total_bytes"`

	// Compression 当前落盘编码
	Compression string `json:"compression"`
	// AvgCompressionRatio 压缩条目的平均压缩率（压缩后/原始），无压缩条目时为 0
	AvgCompressionRatio float64 `json:"avg_compression_ratio"`
}

type counters struct {
	hits          int64
	memoryHits    int64
	misses        int64
	writes        int64
	invalidations int64
}
