package config

import "github.com/ceyewan/warden/xerrors"

// ErrValidationFailed 配置校验失败
var ErrValidationFailed = xerrors.New("configuration validation failed")

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalidInput 检查错误是否为配置无效
func IsInvalidInput(err error) bool {
	return xerrors.IsAny(err, xerrors.ErrInvalidInput, ErrValidationFailed)
}
