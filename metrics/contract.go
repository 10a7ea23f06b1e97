package metrics

import "strconv"

const (
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelHost        = "host"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
)

const (
	OperationHTTPClient = "http.client"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// HTTPStatusClass 返回状态类标签值：1xx/2xx/3xx/4xx/5xx/unknown
//
// status 为 0 表示请求未拿到响应（传输错误）。
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 将 HTTP 状态码映射到 success/error
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}
