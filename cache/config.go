package cache

import (
	"time"

	"github.com/ceyewan/warden/xerrors"
)

const (
	// CodecIdentity 原样落盘
	CodecIdentity = "identity"
	// CodecGzip gzip 压缩落盘
	CodecGzip = "gzip"
)

// Config 缓存配置
//
//	cache:
//	  dir: "~/.cache/warden"
//	  default_ttl: 5m
//	  max_stale: 24h
//	  codec: gzip
//	  serializer: json
//	  memory_capacity: 1000
type Config struct {
	// Dir 缓存目录，必填
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// DefaultTTL Set 未指定 TTL 时使用（默认 5m）
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// MaxStale 忽略 TTL 读取时，允许超过 expires_at 的最长时间（默认 24h，负数表示不限）
	MaxStale time.Duration `json:"max_stale" yaml:"max_stale" mapstructure:"max_stale"`

	// Codec 落盘编码："identity" | "gzip"（默认 identity）
	Codec string `json:"codec" yaml:"codec" mapstructure:"codec"`

	// CompressionLevel gzip 压缩级别，0 使用默认级别
	CompressionLevel int `json:"compression_level" yaml:"compression_level" mapstructure:"compression_level"`

	// Serializer "json" | "msgpack"（默认 json）
	Serializer string `json:"serializer" yaml:"serializer" mapstructure:"serializer"`

	// MemoryCapacity 内存层最大条目数（默认 1000）
	MemoryCapacity int `json:"memory_capacity" yaml:"memory_capacity" mapstructure:"memory_capacity"`
}

func (c *Config) validate() error {
	if c.Dir == "" {
		return xerrors.Wrap(ErrInvalidConfig, "dir is required")
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}
	if c.MaxStale == 0 {
		c.MaxStale = 24 * time.Hour
	}
	if c.Codec == "" {
		c.Codec = CodecIdentity
	}
	if c.Codec != CodecIdentity && c.Codec != CodecGzip {
		return xerrors.Wrapf(ErrInvalidConfig, "unknown codec %q", c.Codec)
	}
	if c.MemoryCapacity <= 0 {
		c.MemoryCapacity = 1000
	}
	return nil
}
