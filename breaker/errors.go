package breaker

import (
	"errors"

	"github.com/ceyewan/warden/xerrors"
)

var (
	// ErrNameEmpty 熔断器名称为空
	ErrNameEmpty = xerrors.New("breaker: name is empty")

	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = xerrors.New("breaker: circuit breaker is open")

	// ErrTooManyRequests 半开状态探测名额已满
	ErrTooManyRequests = xerrors.New("breaker: too many requests in half-open state")
)

// IsRejected err 是否为熔断拒绝（fn 未执行）
func IsRejected(err error) bool {
	return xerrors.IsAny(err, ErrOpenState, ErrTooManyRequests)
}

// excludedError 不计入熔断失败的错误
type excludedError struct {
	err error
}

func (e *excludedError) Error() string { return e.err.Error() }
func (e *excludedError) Unwrap() error { return e.err }

// Exclude 包装一个错误，使其不计入熔断失败
//
// 用于"调用失败但依赖本身正常"的情况，例如 HTTP 404。
func Exclude(err error) error {
	if err == nil {
		return nil
	}
	return &excludedError{err: err}
}

func isExcluded(err error) bool {
	var e *excludedError
	return errors.As(err, &e)
}
