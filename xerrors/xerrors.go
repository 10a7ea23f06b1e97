// Package xerrors 提供 warden 各组件共用的错误处理工具。
//
// 约定：
//   - 每个组件在自己的 errors.go 中定义哨兵错误，并尽量包装下面的通用哨兵，
//     这样上层可以用 Is 做跨组件的粗粒度判断（如 ErrUnavailable）。
//   - 需要机器可读分类时使用 WithCode / GetCode，例如 guard 用失败分类作为错误码。
//   - 多步清理（关闭会话等）用 Collector 收集全部错误，而不是只返回第一个。
package xerrors

import (
	"errors"
	"fmt"
	"strings"
)

// 通用哨兵错误
var (
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput 参数或配置无效
	ErrInvalidInput = errors.New("invalid input")
	// ErrTimeout 操作在自身的超时时间内未完成
	ErrTimeout = errors.New("timeout")
	// ErrUnavailable 依赖暂时不可用（熔断、限流、未认证等）
	ErrUnavailable = errors.New("unavailable")
)

// 标准库函数再导出，调用方只需引入 xerrors
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// ============================================================
// 包装
// ============================================================

// Wrap 用上下文信息包装错误，err 为 nil 时返回 nil
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 同 Wrap，消息支持格式化
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsAny err 是否匹配 targets 中任意一个
func IsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ============================================================
// 错误码
// ============================================================

// CodedError 带机器可读错误码的错误，错误链保持不变
type CodedError struct {
	Code  string
	Cause error
}

// WithCode 给 err 附加错误码，err 为 nil 时返回 nil
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return "[" + e.Code + "]"
	}
	return "[" + e.Code + "] " + e.Cause.Error()
}

func (e *CodedError) Unwrap() error { return e.Cause }

// GetCode 返回错误链上最外层的错误码，没有时返回空串
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must err 非 nil 时 panic，仅用于初始化阶段
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// ============================================================
// 合并
// ============================================================

// MultiError 多个错误的合并结果，Is/As 可匹配其中任意一个
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 丢弃 nil 后合并：无错误返回 nil，单个错误原样返回
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// Collector 依次收集多步操作的错误，零值可用，非并发安全
type Collector struct {
	errs []error
}

// Collect 记录 err，nil 被忽略
func (c *Collector) Collect(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Err 返回收集到的全部错误，规则同 Combine
func (c *Collector) Err() error {
	return Combine(c.errs...)
}
