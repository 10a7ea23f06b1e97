package httpclient

import (
	"fmt"
	"net/http"

	"github.com/ceyewan/warden/xerrors"
)

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "httpclient: invalid config")

	// ErrInvalidURL 请求地址无法解析，或为相对路径但未配置 BaseURL
	ErrInvalidURL = xerrors.Wrap(xerrors.ErrInvalidInput, "httpclient: invalid url")

	// ErrTimeout 请求在 WithTimeout 或 Config.Timeout 内未完成；调用方 ctx 到期不属于此类
	ErrTimeout = xerrors.Wrap(xerrors.ErrTimeout, "httpclient: request timed out")

	// ErrResponseTooLarge 响应体超过 MaxResponseBytes
	ErrResponseTooLarge = xerrors.New("httpclient: response too large")

	// ErrDecode 响应体无法按 JSON 解码
	ErrDecode = xerrors.New("httpclient: decode response")
)

// StatusError 非 2xx 响应，由 Response.RaiseForStatus 返回
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	// Body 响应体前 256 字节，便于日志排查
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// AsStatusError 从错误链中取出 *StatusError
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if xerrors.As(err, &se) {
		return se, true
	}
	return nil, false
}
