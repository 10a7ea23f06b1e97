package httpclient

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ceyewan/warden/xerrors"
)

// Response 已完整读取响应体的 HTTP 响应
type Response struct {
	StatusCode int
	Header     http.Header

	method string
	url    string
	body   []byte
}

// OK 状态码是否为 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RaiseForStatus 非 2xx 时返回 *StatusError
func (r *Response) RaiseForStatus() error {
	if r.OK() {
		return nil
	}
	body := r.body
	if len(body) > 256 {
		body = body[:256]
	}
	return &StatusError{
		Method:     r.method,
		URL:        r.url,
		StatusCode: r.StatusCode,
		Body:       string(body),
	}
}

// JSON 将响应体解码到 dest
func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.body, dest); err != nil {
		return xerrors.Combine(ErrDecode, err)
	}
	return nil
}

// Text 响应体字符串
func (r *Response) Text() string {
	return string(r.body)
}

// Bytes 响应体原始字节
func (r *Response) Bytes() []byte {
	return r.body
}

// RetryAfter 解析 Retry-After 头，支持秒数与 HTTP 日期两种格式
func (r *Response) RetryAfter() (time.Duration, bool) {
	return parseRetryAfter(r.Header.Get("Retry-After"), time.Now())
}

// maxRetryAfterSeconds time.Duration 能表示的最大整秒数
const maxRetryAfterSeconds = int64(math.MaxInt64 / int64(time.Second))

func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	// 超出 int64 的秒数按上限处理
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil || xerrors.Is(err, strconv.ErrRange) {
		if secs < 0 {
			return 0, false
		}
		if secs > maxRetryAfterSeconds {
			secs = maxRetryAfterSeconds
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
