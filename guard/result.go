package guard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ceyewan/warden/xerrors"
)

// Outcome 一次受保护调用的结果
type Outcome string

const (
	// OutcomeOK 网络请求成功
	OutcomeOK Outcome = "ok"
	// OutcomeCached 命中新鲜缓存，未发起网络请求
	OutcomeCached Outcome = "cached"
	// OutcomeStale 请求失败，返回了过期但仍在 MaxStale 内的缓存
	OutcomeStale Outcome = "stale"
	// OutcomeUnavailable 连接状态不允许发起请求
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeRejected 熔断器拒绝，请求未发出
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed 请求已发出但失败
	OutcomeFailed Outcome = "failed"
)

// Failure 失败分类
type Failure string

const (
	FailureNone      Failure = ""
	FailureRejected  Failure = "rejected"
	FailureTransport Failure = "transport"
	FailureStatus    Failure = "status"
	FailureDecode    Failure = "decode"
	// FailureCanceled 调用方的 ctx 已取消或超时，不代表依赖故障
	FailureCanceled Failure = "canceled"
)

// Request 受保护调用的描述
type Request struct {
	// Method 默认 GET
	Method string
	// Path 相对 BaseURL 的路径或绝对 URL
	Path    string
	Query   map[string]string
	Headers map[string]string
	// Body 非 nil 时以 JSON 编码发送
	Body    any
	Timeout time.Duration

	// Cacheable 仅对 GET 生效
	Cacheable bool
	// CacheKey 为空时由 cache.Key(Path, Query) 生成
	CacheKey string
	// TTL 为 0 时使用 guard 默认值
	TTL time.Duration
	// StaleOnError 失败时回退到过期缓存
	StaleOnError bool
	// Invalidate 非 GET 请求成功后失效的缓存 key
	Invalidate []string
}

// Result 受保护调用的结果，预期内的失败不会以 error 形式返回
//
// OK() 为 false 表示"当前不可用"，调用方应静默降级。
// Err 记录失败原因，仅用于日志；请求失败时带有以 Failure 为值的错误码（xerrors.GetCode）。
type Result struct {
	Outcome    Outcome
	Failure    Failure
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

// OK 是否有可用的负载（OK、Cached 或 Stale）
func (r Result) OK() bool {
	switch r.Outcome {
	case OutcomeOK, OutcomeCached, OutcomeStale:
		return true
	default:
		return false
	}
}

// Decode 将负载按 JSON 解码到 dest
func (r Result) Decode(dest any) error {
	if !r.OK() {
		return xerrors.Wrapf(ErrNoResult, "outcome %s", r.Outcome)
	}
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return xerrors.Combine(ErrDecode, err)
	}
	return nil
}
