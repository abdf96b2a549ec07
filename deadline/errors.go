package deadline

import (
	"fmt"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidDeadline deadline <= 0, 是调用方的编程错误, 不会启动任务
	ErrInvalidDeadline = errors.New("invalid deadline")
	// ErrTimedOut 只由 Outcome.Result 返回, 执行器本身不会因为超时返回错误
	ErrTimedOut = errors.New("timed out")
	// ErrNilWork job或work为nil
	ErrNilWork = errors.New("nil work")
	// ErrWorkExited 任务没有正常返回, 比如调用了 runtime.Goexit
	ErrWorkExited = errors.New("work exited without returning")
	// ErrBadSignature Bind/Wrap 的函数返回值不能转换为 Outcome
	ErrBadSignature = errors.New("bad function signature")
)

// PanicError 任务panic时, 在任务所在的协程中recover, 并作为 Failed 的错误返回给调用方
type PanicError struct {
	Value any
	stack error // 只用来携带recover时的调用栈
}

func newPanicError(value any) *PanicError {
	return &PanicError{
		Value: value,
		stack: errors.New("recovered"),
	}
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("work panicked: %v", p.Value)
}

// Unwrap 如果panic的值本身是error, 可以使用 errors.Is/As 判断
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// Format %+v 时输出recover时的调用栈
func (p *PanicError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "%s%+v", p.Error(), p.stack.(stackTracer).StackTrace())
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, p.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", p.Error())
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}
