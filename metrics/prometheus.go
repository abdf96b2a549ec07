package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

type Registry struct {
	Registry        *prometheus.Registry
	RegistryOptions *prometheus.Opts
}

func NewRegistry(options *prometheus.Opts) *Registry {
	if options == nil {
		options = &prometheus.Opts{}
	}

	return &Registry{
		Registry:        prometheus.NewRegistry(),
		RegistryOptions: options,
	}
}

// MustRegister implements Registerer.
func (reg *Registry) MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		reg.Register(c)
	}
}

// Register 注册一个指标, 如果已经注册过同样的指标, 返回已经注册的那个
func (reg *Registry) Register(collector prometheus.Collector) prometheus.Collector {
	if err := reg.Registry.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}

	return collector
}

// Handler 输出 /metrics 的http handler
func (reg *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(reg.Registry, promhttp.HandlerOpts{Registry: reg.Registry})
}

func (reg *Registry) fqName(name string) string {
	return prometheus.BuildFQName(reg.RegistryOptions.Namespace, reg.RegistryOptions.Subsystem, name)
}

// RegisterCounter 注册一个累加器指标, 可用于执行次数
func (reg *Registry) RegisterCounter(name, help string, labels ...string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        reg.fqName(name),
			Help:        help,
			ConstLabels: reg.RegistryOptions.ConstLabels,
		},
		labels,
	)
	return reg.Register(counter).(*prometheus.CounterVec)
}

// RegisterGauge 注册一个仪表盘 瞬时指标, 可增可减。 比如仍在后台运行的任务数
func (reg *Registry) RegisterGauge(name, help string, labels ...string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        reg.fqName(name),
			Help:        help,
			ConstLabels: reg.RegistryOptions.ConstLabels,
		},
		labels,
	)
	return reg.Register(gauge).(*prometheus.GaugeVec)
}

// RegisterHistogram 注册一个累积直方图
func (reg *Registry) RegisterHistogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        reg.fqName(name),
			Help:        help,
			Buckets:     buckets,
			ConstLabels: reg.RegistryOptions.ConstLabels,
		},
		labels,
	)
	return reg.Register(histogram).(*prometheus.HistogramVec)
}
