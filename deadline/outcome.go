package deadline

import (
	"github.com/pkg/errors"
	"time"
)

// State 执行结果的类型, 一次调用只会有其中一种
type State int

const (
	Completed State = iota + 1 // 在deadline之前正常结束
	Failed                     // 在deadline之前结束, 但是返回了错误或panic
	TimedOut                   // 在deadline之前没有结束, 任务可能仍在后台运行
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Outcome 一次限时执行的结果
//
//	Completed: Value() 返回任务的返回值(可能是零值)
//	Failed: Err() 返回任务的原始错误, 不做任何包装, panic 则是 *PanicError
//	TimedOut: 结果未知, 既不是成功也不是失败, 不要当作空的成功结果
type Outcome[T any] struct {
	state   State
	value   T
	err     error
	elapsed time.Duration
}

func completed[T any](value T, elapsed time.Duration) Outcome[T] {
	return Outcome[T]{state: Completed, value: value, elapsed: elapsed}
}

func failed[T any](err error, elapsed time.Duration) Outcome[T] {
	return Outcome[T]{state: Failed, err: err, elapsed: elapsed}
}

func timedOut[T any](elapsed time.Duration) Outcome[T] {
	return Outcome[T]{state: TimedOut, elapsed: elapsed}
}

func (o Outcome[T]) State() State {
	return o.state
}

func (o Outcome[T]) Completed() bool {
	return o.state == Completed
}

func (o Outcome[T]) Failed() bool {
	return o.state == Failed
}

func (o Outcome[T]) TimedOut() bool {
	return o.state == TimedOut
}

// Value 只有 Completed 时 ok 为 true
func (o Outcome[T]) Value() (value T, ok bool) {
	return o.value, o.state == Completed
}

// Err 只有 Failed 时非nil
func (o Outcome[T]) Err() error {
	return o.err
}

// Elapsed 调用方等待的时长
func (o Outcome[T]) Elapsed() time.Duration {
	return o.elapsed
}

// Result 转为Go的 (T, error) 形式, TimedOut 返回 ErrTimedOut
func (o Outcome[T]) Result() (T, error) {
	switch o.state {
	case Completed:
		return o.value, nil
	case Failed:
		var zero T
		return zero, o.err
	case TimedOut:
		var zero T
		return zero, errors.Wrapf(ErrTimedOut, "gave up after %s", o.elapsed)
	}

	var zero T
	return zero, errors.New("empty outcome")
}

func (o Outcome[T]) String() string {
	switch o.state {
	case Failed:
		return "failed: " + o.err.Error()
	case TimedOut:
		return "timed out after " + o.elapsed.String()
	}
	return o.state.String()
}
