package guard

import "github.com/ceyewan/warden/xerrors"

var (
	// ErrNilCollaborator New 的必填依赖为 nil
	ErrNilCollaborator = xerrors.Wrap(xerrors.ErrInvalidInput, "guard: nil collaborator")

	// ErrNotConnected 连接状态不允许发起请求
	ErrNotConnected = xerrors.Wrap(xerrors.ErrUnavailable, "guard: not connected")

	// ErrUnsupportedMethod 只支持 GET/POST/PUT/DELETE
	ErrUnsupportedMethod = xerrors.Wrap(xerrors.ErrInvalidInput, "guard: unsupported method")

	// ErrDecode 响应体不是合法 JSON
	ErrDecode = xerrors.New("guard: invalid json payload")

	// ErrNoResult Result 没有可用负载
	ErrNoResult = xerrors.New("guard: no result")
)
