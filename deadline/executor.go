// Package deadline 在限定的时间内运行一个任务。
//
// 任务在独立的协程中运行, 调用方最多等待deadline:
//
//	outcome, err := deadline.Execute(func(ctx context.Context) (int, error) {
//		return slowCompute()
//	}, 200*time.Millisecond)
//
// err 只在deadline不合法时返回, 任务的错误在 outcome.Err() 中.
// 超时后任务不会被停止, 会在后台运行到结束, 结果被丢弃.
package deadline

import (
	"context"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"gopkg.in/go-mixed/deadline.v1/event"
	"gopkg.in/go-mixed/deadline.v1/logger"
	"gopkg.in/go-mixed/deadline.v1/metrics"
	"gopkg.in/go-mixed/deadline.v1/utils/core"
	"time"
)

type Params struct {
	Name string // 名称, 输出在日志、事件中

	// CancelOnTimeout 超时后cancel传给任务的ctx. 任务需要自行监听 ctx.Done() 退出,
	// 执行器仍然不会等待它, 结果仍然是 TimedOut
	CancelOnTimeout bool

	Metrics *metrics.ExecutorCollectors // 可以为nil
	Events  *event.Emitter              // 可以为nil
}

// Executor 限时执行器. 每次调用都是独立的: 一个新的协程, 一个新的结果通道, 调用之间不会相互影响
//
// Executor 本身只记录仍在后台运行的超时任务的数量, 用于退出前等待
type Executor struct {
	params *Params
	logger *logger.Logger

	abandoned *core.WaitGroup // 超时后仍在运行的任务
}

// NewExecutor 创建一个执行器, logger为nil时使用全局logger
func NewExecutor(params Params, logger *logger.Logger) *Executor {
	if params.Name == "" {
		params.Name = core.GetFrame(1).Function
	}
	return &Executor{
		params:    &params,
		logger:    logger,
		abandoned: &core.WaitGroup{},
	}
}

var defaultExecutor = NewExecutor(Params{Name: "default"}, nil)

// Default 包级别的 Execute 使用的执行器
func Default() *Executor {
	return defaultExecutor
}

func (e *Executor) Name() string {
	return e.params.Name
}

func (e *Executor) log() *logger.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logger.GetGlobalLogger()
}

// Abandoned 超时之后仍在后台运行的任务数
func (e *Executor) Abandoned() int64 {
	return e.abandoned.Counter()
}

// WaitAbandoned 阻塞等待所有超时的任务在后台运行结束, 最多等待timeout. 返回是否全部结束
//
// 执行器不会停止超时的任务, 进程退出时它们会被直接终止. 如果需要让它们运行完, 在退出前调用本函数
func (e *Executor) WaitAbandoned(timeout time.Duration) bool {
	return e.abandoned.WaitTimeout(timeout)
}

// Execute 使用默认执行器, 在deadline内运行work
func Execute[T any](work Work[T], deadline time.Duration) (Outcome[T], error) {
	return Run(context.Background(), Default(), newJob("", work, nil, 2), deadline)
}

// MustExecute 同 Execute, deadline不合法时panic
func MustExecute[T any](work Work[T], deadline time.Duration) Outcome[T] {
	outcome, err := Run(context.Background(), Default(), newJob("", work, nil, 2), deadline)
	if err != nil {
		panic(err)
	}
	return outcome
}

// MustRun 同 Run, 参数不合法时panic
func MustRun[T any](ctx context.Context, e *Executor, job *Job[T], deadline time.Duration) Outcome[T] {
	outcome, err := Run(ctx, e, job, deadline)
	if err != nil {
		panic(err)
	}
	return outcome
}

// Wrap 将fn包装为一个限时执行的函数, 类似装饰器. deadline 和 fn 的签名在此时校验, 参数在每次调用时校验
//
//	atoi, _ := deadline.Wrap[int](nil, time.Second, strconv.Atoi)
//	outcome, err := atoi(ctx, "42")
func Wrap[T any](e *Executor, deadline time.Duration, fn any) (func(ctx context.Context, args ...any) (Outcome[T], error), error) {
	if err := validateDeadline(deadline); err != nil {
		return nil, err
	}

	b, err := newBinding[T](fn)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, args ...any) (Outcome[T], error) {
		work, err := b.bind(args)
		if err != nil {
			return Outcome[T]{}, err
		}
		return Run(ctx, e, newJob(b.fn.Name(), work, args, 2), deadline)
	}, nil
}

func validateDeadline(deadline time.Duration) error {
	if deadline <= 0 {
		return errors.Wrapf(ErrInvalidDeadline, "deadline must be positive, got %s", deadline)
	}
	return nil
}

// Run 在新的协程中运行job, 阻塞等待最多deadline
//
//   - 返回error: 只有参数不合法(deadline <= 0, job为nil), 此时不会启动任务
//   - 任务在deadline之前结束: Completed 或 Failed, 错误原样返回
//   - 任务没有在deadline之前结束: TimedOut, 输出一条WARN日志, 任务继续在后台运行
//
// 只有在deadline之前观察到任务结束才是 Completed/Failed: 任务的结束时间严格早于deadline,
// 并且任务协程先于调用方放弃等待完成交接. 恰好在deadline时刻结束, 或者交接时被调用方抢先, 都是 TimedOut
func Run[T any](ctx context.Context, e *Executor, job *Job[T], deadline time.Duration) (Outcome[T], error) {
	if e == nil {
		e = Default()
	}
	if err := validateDeadline(deadline); err != nil {
		e.params.Metrics.InvalidDeadline()
		return Outcome[T]{}, err
	}
	if job == nil || job.Work == nil {
		return Outcome[T]{}, errors.WithStack(ErrNilWork)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	workCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.params.CancelOnTimeout {
		workCtx, cancel = context.WithCancel(ctx)
	}

	c := &call[T]{done: make(chan struct{})}
	start := time.Now()
	go c.run(workCtx, job.Work, cancel, func() { e.onAbandonedDone(job.Name, start, c.err) })

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
		// 先计数再放弃, 保证任务协程结束时的 Done 不会早于 Add
		e.abandoned.Add(1)
		e.params.Metrics.Abandoned()
		if c.abandon() {
			cancel()
			return giveUp(e, job, deadline, start), nil
		}
		// 任务在超时的同时结束了
		e.abandoned.Done()
		e.params.Metrics.AbandonReverted()
		<-c.done
	}

	return settle(e, job, c, deadline, start), nil
}

// settle 任务已经结束(done已关闭)并完成了交接, 结束时间不早于deadline时仍为 TimedOut
func settle[T any](e *Executor, job *Job[T], c *call[T], deadline time.Duration, start time.Time) Outcome[T] {
	if c.finishedAt.Sub(start) >= deadline {
		return giveUp(e, job, deadline, start)
	}

	var outcome Outcome[T]
	if c.err != nil {
		outcome = failed[T](c.err, time.Since(start))
	} else {
		outcome = completed(c.value, time.Since(start))
	}
	e.params.Metrics.ObserveOutcome(job.Name, outcome.State().String(), outcome.Elapsed())
	return outcome
}

// giveUp 放弃等待: 输出一条WARN日志, 发送 event.TopicTimeout
func giveUp[T any](e *Executor, job *Job[T], deadline time.Duration, start time.Time) Outcome[T] {
	outcome := timedOut[T](time.Since(start))

	e.log().Warn("job timed out",
		"executor", e.params.Name,
		"job", job.Name,
		"args", job.Args,
		"deadline", deadline,
		"caller", job.Caller(),
	)
	e.params.Metrics.ObserveOutcome(job.Name, TimedOut.String(), outcome.Elapsed())
	e.params.Events.Publish(event.TopicTimeout, event.Timeout{
		Executor: e.params.Name,
		Job:      job.Name,
		Args:     job.Args,
		Deadline: deadline,
		Caller:   job.Caller(),
		At:       time.Now(),
	})

	return outcome
}

// onAbandonedDone 在任务协程中调用, 任务超时后在后台运行结束了, 它的结果已经被丢弃
func (e *Executor) onAbandonedDone(name string, start time.Time, err error) {
	elapsed := time.Since(start)
	e.log().Debug("abandoned job finished, result discarded",
		"executor", e.params.Name,
		"job", name,
		"elapsed", elapsed,
	)
	e.params.Metrics.AbandonedFinished(name)
	e.params.Events.Publish(event.TopicAbandonedDone, event.AbandonedDone{
		Executor: e.params.Name,
		Job:      name,
		Elapsed:  elapsed,
		Err:      err,
	})
	e.abandoned.Done()
}

const (
	callRunning int32 = iota
	callFinished
	callAbandoned
)

// call 一次调用的协程与调用方之间的交接
//
// value/err/finishedAt 只由任务协程写入一次, 在 done 关闭之后, 或 abandon 失败之后, 才能由调用方读取
type call[T any] struct {
	value      T
	err        error
	finishedAt time.Time

	state atomic.Int32
	done  chan struct{}
}

// run 在任务协程中运行, 错误、panic、runtime.Goexit 都会被捕获, 不会跨越协程
func (c *call[T]) run(ctx context.Context, work Work[T], cancel context.CancelFunc, onAbandonedDone func()) {
	returned := false
	defer func() {
		if r := recover(); r != nil {
			c.err = newPanicError(r)
		} else if !returned {
			var zero T
			c.value, c.err = zero, errors.WithStack(ErrWorkExited)
		}
		c.finishedAt = time.Now()
		cancel()

		if !c.state.CompareAndSwap(callRunning, callFinished) {
			// 调用方已经放弃等待, 结果被丢弃
			onAbandonedDone()
		}
		close(c.done)
	}()

	c.value, c.err = work(ctx)
	returned = true
}

// abandon 调用方放弃等待, 返回false表示任务已经结束
func (c *call[T]) abandon() bool {
	return c.state.CompareAndSwap(callRunning, callAbandoned)
}
