package batch

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 批量操作的 Prometheus 指标
type Metrics struct {
	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics 创建并注册批量指标；reg 为 nil 时只创建不注册
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crud_batch_items_total",
			Help: "Number of batch items processed, partitioned by operation and outcome.",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crud_batch_duration_seconds",
			Help:    "Duration of batch submissions, partitioned by operation and consistency mode.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "mode"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.items, m.duration} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				m.items = existing
			case *prometheus.HistogramVec:
				m.duration = existing
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeItems(op string, status Status, n int) {
	if m == nil || n == 0 {
		return
	}
	m.items.WithLabelValues(op, status.String()).Add(float64(n))
}

func (m *Metrics) observeDuration(op string, atomic bool, d time.Duration) {
	if m == nil {
		return
	}
	mode := "best_effort"
	if atomic {
		mode = "atomic"
	}
	m.duration.WithLabelValues(op, mode).Observe(d.Seconds())
}
