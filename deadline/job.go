package deadline

import (
	"context"
	"github.com/pkg/errors"
	"gopkg.in/go-mixed/deadline.v1/utils/core"
	"reflect"
	"runtime"
)

// Work 被限时执行的任务
//
// ctx 为调用方传入的ctx, 只有在 Params.CancelOnTimeout 时才会在超时后被cancel.
// 默认情况下超时不会停止任务, 任务会一直运行到结束, 结果被丢弃
type Work[T any] func(ctx context.Context) (T, error)

// Func 将一个无参数的函数转换为 Work, 参数请通过闭包传入
func Func[T any](fn func() (T, error)) Work[T] {
	if fn == nil {
		return nil
	}
	return func(context.Context) (T, error) {
		return fn()
	}
}

// Job 任务以及它的描述, Name、Args 只用于超时时的日志与事件
type Job[T any] struct {
	Name string
	Args []any
	Work Work[T]

	frame runtime.Frame // 提交任务的位置
}

// NewJob 新建任务, name 为空时使用 work 的函数名
func NewJob[T any](name string, work Work[T], args ...any) *Job[T] {
	return newJob(name, work, args, 2)
}

// skip: 0 为 newJob, 1 为调用 newJob 的函数, 2 为它的调用者
func newJob[T any](name string, work Work[T], args []any, skip int) *Job[T] {
	if name == "" && work != nil {
		name = funcName(work)
	}
	return &Job[T]{
		Name:  name,
		Args:  args,
		Work:  work,
		frame: core.GetFrame(skip),
	}
}

// CallerSkip 重新记录提交任务的位置, 供封装了 NewJob 的函数使用. skip 为 0 时是调用 CallerSkip 的位置
func (j *Job[T]) CallerSkip(skip int) *Job[T] {
	j.frame = core.GetFrame(skip + 1)
	return j
}

// Caller 提交任务的位置, file:line
func (j *Job[T]) Caller() string {
	return core.FrameString(j.frame)
}

func funcName(fn any) string {
	if f, err := core.NewFunc(fn); err == nil {
		return f.Name()
	}
	return "unknown"
}

// Bind 将任意函数以及参数绑定为 Job, 参数的个数、类型会在此时校验
//
// 支持的函数签名(第一个参数可以是 context.Context, 由执行器传入):
//
//	func(args...) T
//	func(args...) (T, error)
//	func(args...) error
//	func(args...)
//
// 例如:
//
//	job, err := deadline.Bind[int](strconv.Atoi, "42")
func Bind[T any](fn any, args ...any) (*Job[T], error) {
	b, err := newBinding[T](fn)
	if err != nil {
		return nil, err
	}

	work, err := b.bind(args)
	if err != nil {
		return nil, err
	}

	return newJob(b.fn.Name(), work, args, 2), nil
}

// binding 预先校验过签名的函数, 可以多次绑定不同的参数
type binding[T any] struct {
	fn          *core.Func
	withContext bool
	valueIndex  int // 返回值中 T 的位置, -1 表示没有
	errorIndex  int // 返回值中 error 的位置, -1 表示没有
}

func newBinding[T any](fn any) (*binding[T], error) {
	f, err := core.NewFunc(fn)
	if err != nil {
		return nil, err
	}

	b := &binding[T]{
		fn:          f,
		withContext: f.AcceptContext(),
		valueIndex:  -1,
		errorIndex:  -1,
	}

	target := reflect.TypeOf((*T)(nil)).Elem()
	out := f.Out()
	switch {
	case len(out) == 0:
	case len(out) == 1 && out[0] == core.ErrorType:
		b.errorIndex = 0
	case len(out) == 1:
		b.valueIndex = 0
	case len(out) == 2 && out[1] == core.ErrorType:
		b.valueIndex, b.errorIndex = 0, 1
	default:
		return nil, errors.Wrapf(ErrBadSignature, "%s returns %d value(s) of '%s'", f.Name(), len(out), f.Type())
	}

	if b.valueIndex >= 0 && !out[b.valueIndex].AssignableTo(target) {
		return nil, errors.Wrapf(ErrBadSignature, "%s returns '%s', not assignable to '%s'", f.Name(), out[b.valueIndex], target)
	}

	return b, nil
}

func (b *binding[T]) bind(args []any) (Work[T], error) {
	skip := 0
	if b.withContext {
		skip = 1
	}

	in, err := b.fn.Args(skip, args...)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (value T, err error) {
		callIn := in
		if b.withContext {
			callIn = append([]reflect.Value{reflect.ValueOf(&ctx).Elem()}, in...)
		}

		out := b.fn.Call(callIn)

		if b.valueIndex >= 0 {
			reflect.ValueOf(&value).Elem().Set(out[b.valueIndex])
		}
		if b.errorIndex >= 0 {
			if e := out[b.errorIndex]; !e.IsNil() {
				err = e.Interface().(error)
			}
		}
		return value, err
	}, nil
}
