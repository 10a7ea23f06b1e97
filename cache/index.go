package cache

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ceyewan/warden/xerrors"
)

const (
	// IndexFile 元数据索引文件名，位于缓存目录根部
	IndexFile = "cache_metadata.json"
	// DataDir 数据文件所在的子目录，与索引文件分开存放，任何 key 都不会覆盖索引
	DataDir = "data"
)

// indexEntry 索引中单个条目，时间为 unix 秒（浮点）
type indexEntry struct {
	Timestamp        float64 `json:"timestamp"`
	TTL              float64 `json:"ttl"`
	ExpiresAt        float64 `json:"expires_at"`
	SizeBytes        int64   `json:"size_bytes"`
	Compressed       bool    `json:"compressed"`
	OriginalSize     int64   `json:"original_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	HasJSONCopy      bool    `json:"has_json_copy"`
}

func (e indexEntry) expiresAt() time.Time {
	return fromUnix(e.ExpiresAt)
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnix(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}

// loadIndex 文件不存在时返回空索引
func loadIndex(dir string) (map[string]indexEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if os.IsNotExist(err) {
		return make(map[string]indexEntry), nil
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "read cache index")
	}

	index := make(map[string]indexEntry)
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, xerrors.Wrap(err, "decode cache index")
	}
	return index, nil
}

// saveIndex 写临时文件后 rename，保证索引文件始终完整
func saveIndex(dir string, index map[string]indexEntry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return xerrors.Wrap(err, "encode cache index")
	}
	return writeFileAtomic(filepath.Join(dir, IndexFile), data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return xerrors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return xerrors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return xerrors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return xerrors.Wrap(err, "rename temp file")
	}
	return nil
}
