package cache

import "github.com/ceyewan/warden/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("cache: invalid config")

	// ErrEmptyKey key 经清洗后为空
	ErrEmptyKey = xerrors.New("cache: empty key")
)
