package connstate

import (
	"fmt"

	"github.com/ceyewan/warden/xerrors"
)

// ErrIllegalTransition 非法状态迁移
var ErrIllegalTransition = xerrors.New("connstate: illegal transition")

// TransitionError 描述一次被拒绝的迁移，errors.Is(err, ErrIllegalTransition) 为 true
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("connstate: illegal transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
