package event

import (
	"context"
	"github.com/olebedev/emitter"
	"sync"
	"time"
)

const (
	// TopicTimeout 调用方等待超时, 放弃等待时发送, payload: Timeout
	TopicTimeout = "deadline.timeout"
	// TopicAbandonedDone 被放弃的任务在后台运行结束时发送, payload: AbandonedDone
	TopicAbandonedDone = "deadline.abandoned.done"
)

type Timeout struct {
	Executor string
	Job      string
	Args     []any
	Deadline time.Duration
	Caller   string
	At       time.Time
}

// AbandonedDone 后台任务的结果已经被丢弃, 这里只用于观察
type AbandonedDone struct {
	Executor string
	Job      string
	Elapsed  time.Duration // 从任务开始到结束
	Err      error
}

type Handler func(payload any)

type Emitter struct {
	*emitter.Emitter
	mu        sync.Mutex
	ctxCancel context.CancelFunc
	listeners map[string][]Handler
}

func NewEmitter(cap uint) *Emitter {
	return &Emitter{
		Emitter:   emitter.New(cap),
		listeners: map[string][]Handler{},
	}
}

// Subscribe 注册topic的处理函数, 由 RunConsumer 调用
func (e *Emitter) Subscribe(topic string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[topic] = append(e.listeners[topic], handler)
}

// Publish 异步发送事件, 不会阻塞. nil 的 *Emitter 不做任何事
func (e *Emitter) Publish(topic string, payload any) {
	if e == nil {
		return
	}
	e.Emit(topic, payload)
}

func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctxCancel != nil {
		e.ctxCancel()
	}
	e.ctxCancel = nil
}

// RunConsumer 阻塞消费所有topic的事件, 直到ctx结束或 Stop
func (e *Emitter) RunConsumer(ctx context.Context) {
	ctx1, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.ctxCancel = cancel
	e.mu.Unlock()
	defer e.Stop()

	events := e.On("*")
	for {
		select {
		case <-ctx1.Done():
			// Off 会关闭通道, 在此之前把还在发送中的事件读掉, 防止发送方阻塞
			go func() {
				for range events {
				}
			}()
			e.Off("*", events)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.dispatch(ev)
		}
	}
}

func (e *Emitter) dispatch(ev emitter.Event) {
	e.mu.Lock()
	handlers := e.listeners[ev.OriginalTopic]
	e.mu.Unlock()

	var payload any
	if len(ev.Args) > 0 {
		payload = ev.Args[0]
	}
	for _, handler := range handlers {
		handler(payload)
	}
}
