package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"time"
)

// ExecutorCollectors 限时执行器的指标. nil 的 *ExecutorCollectors 可以安全调用, 不做任何事
type ExecutorCollectors struct {
	executions        *prometheus.CounterVec
	invalidDeadline   *prometheus.CounterVec
	waitSeconds       *prometheus.HistogramVec
	abandonedRunning  *prometheus.GaugeVec
	abandonedFinished *prometheus.CounterVec
}

func NewExecutorCollectors(reg *Registry) *ExecutorCollectors {
	return &ExecutorCollectors{
		executions:        reg.RegisterCounter("executions_total", "Executions by job and outcome.", "job", "outcome"),
		invalidDeadline:   reg.RegisterCounter("invalid_deadline_total", "Calls rejected because of a non-positive deadline."),
		waitSeconds:       reg.RegisterHistogram("wait_seconds", "Time the caller waited for an outcome.", prometheus.DefBuckets, "outcome"),
		abandonedRunning:  reg.RegisterGauge("abandoned_running", "Timed out executions still running in background."),
		abandonedFinished: reg.RegisterCounter("abandoned_finished_total", "Timed out executions that finished later, result discarded.", "job"),
	}
}

func (c *ExecutorCollectors) ObserveOutcome(job, outcome string, wait time.Duration) {
	if c == nil {
		return
	}
	c.executions.WithLabelValues(job, outcome).Inc()
	c.waitSeconds.WithLabelValues(outcome).Observe(wait.Seconds())
}

func (c *ExecutorCollectors) InvalidDeadline() {
	if c == nil {
		return
	}
	c.invalidDeadline.WithLabelValues().Inc()
}

func (c *ExecutorCollectors) Abandoned() {
	if c == nil {
		return
	}
	c.abandonedRunning.WithLabelValues().Inc()
}

// AbandonReverted 放弃等待的同时任务已经结束, 撤销 Abandoned
func (c *ExecutorCollectors) AbandonReverted() {
	if c == nil {
		return
	}
	c.abandonedRunning.WithLabelValues().Dec()
}

func (c *ExecutorCollectors) AbandonedFinished(job string) {
	if c == nil {
		return
	}
	c.abandonedRunning.WithLabelValues().Dec()
	c.abandonedFinished.WithLabelValues(job).Inc()
}
