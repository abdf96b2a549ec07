package core

import (
	"go.uber.org/atomic"
	"sync"
	"time"
)

// WaitGroup 可以读取计数器、可以限时等待的WaitGroup. Done 时负数不会panic
//
// 与 sync.WaitGroup 不同, 计数器归零之后可以立即再次 Add, 即使仍有协程在 Wait
type WaitGroup struct {
	counter atomic.Int64

	mu      sync.Mutex
	drained chan struct{} // 计数器归零时关闭, 从0变为正数时替换; nil 表示已归零
}

// Add 注意: 如果传递一个超出计数器的负数, 计数器会被置为0
func (w *WaitGroup) Add(delta int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.add(delta)
}

func (w *WaitGroup) add(delta int) {
	before := w.counter.Load()
	after := before + int64(delta)
	if after < 0 {
		after = 0
	}
	w.counter.Store(after)

	switch {
	case before <= 0 && after > 0:
		w.drained = make(chan struct{})
	case before > 0 && after == 0:
		close(w.drained)
		w.drained = nil
	}
}

// Done 计数器减1, 计数器已经是0时返回false
func (w *WaitGroup) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.counter.Load() <= 0 {
		return false
	}
	w.add(-1)
	return true
}

// Counter 返回计数器
func (w *WaitGroup) Counter() int64 {
	return w.counter.Load()
}

// wait 当前这一轮的归零信号, nil 表示已经是0
func (w *WaitGroup) wait() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drained
}

// Wait 阻塞直到计数器归零
func (w *WaitGroup) Wait() {
	if ch := w.wait(); ch != nil {
		<-ch
	}
}

// WaitTimeout 阻塞等待计数器归零, 最多等待timeout. 返回是否在timeout之前归零
func (w *WaitGroup) WaitTimeout(timeout time.Duration) bool {
	ch := w.wait()
	if ch == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
