package httpclient

import (
	"time"
)

// RequestOption 单次请求选项
type RequestOption func(*request)

type request struct {
	headers     map[string]string
	query       map[string]string
	body        []byte
	contentType string
	jsonBody    any
	hasJSON     bool
	timeout     time.Duration
}

// WithHeader 设置请求头
func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		if r.headers == nil {
			r.headers = make(map[string]string)
		}
		r.headers[key] = value
	}
}

// WithHeaders 批量设置请求头
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *request) {
		for k, v := range headers {
			WithHeader(k, v)(r)
		}
	}
}

// WithQuery 追加查询参数，与 URL 中已有的参数合并
func WithQuery(query map[string]string) RequestOption {
	return func(r *request) {
		if r.query == nil {
			r.query = make(map[string]string, len(query))
		}
		for k, v := range query {
			r.query[k] = v
		}
	}
}

// WithJSON 以 JSON 编码 v 作为请求体
func WithJSON(v any) RequestOption {
	return func(r *request) {
		r.jsonBody = v
		r.hasJSON = true
		r.body = nil
	}
}

// WithBody 使用原始字节作为请求体
func WithBody(contentType string, body []byte) RequestOption {
	return func(r *request) {
		r.contentType = contentType
		r.body = body
		r.jsonBody = nil
		r.hasJSON = false
	}
}

// WithTimeout 覆盖客户端默认超时
func WithTimeout(d time.Duration) RequestOption {
	return func(r *request) {
		r.timeout = d
	}
}
