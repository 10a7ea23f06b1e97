package cache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/ceyewan/warden/xerrors"
)

// codec 落盘编码策略，构造时选定
type codec interface {
	name() string
	compressed() bool
	encode(data []byte) ([]byte, error)
	decode(data []byte) ([]byte, error)
}

func newCodec(cfg *Config) codec {
	if cfg.Codec == CodecGzip {
		level := cfg.CompressionLevel
		if level == 0 {
			level = gzip.DefaultCompression
		}
		return gzipCodec{level: level}
	}
	return identityCodec{}
}

// codecFor 读取时按条目自身的 compressed 标记选择解码方式
func codecFor(compressed bool) codec {
	if compressed {
		return gzipCodec{level: gzip.DefaultCompression}
	}
	return identityCodec{}
}

type identityCodec struct{}

func (identityCodec) name() string                       { return CodecIdentity }
func (identityCodec) compressed() bool                   { return false }
func (identityCodec) encode(data []byte) ([]byte, error) { return data, nil }
func (identityCodec) decode(data []byte) ([]byte, error) { return data, nil }

type gzipCodec struct {
	level int
}

func (gzipCodec) name() string     { return CodecGzip }
func (gzipCodec) compressed() bool { return true }

func (g gzipCodec) encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, xerrors.Wrap(err, "create gzip writer")
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, xerrors.Wrap(err, "gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, xerrors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}

func (gzipCodec) decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Wrap(err, "open gzip reader")
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.Wrap(err, "gzip read")
	}
	return out, nil
}
