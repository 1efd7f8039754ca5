package knowledge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 知识检索指标收集器
type Metrics struct {
	upsertsCounter  *prometheus.CounterVec
	searchesCounter *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	upsertDuration  *prometheus.HistogramVec
}

// NewMetrics 注册并创建Prometheus指标
func NewMetrics() *Metrics {
	return &Metrics{
		upsertsCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowledge_upserts_total",
				Help: "Total number of chunk upserts",
			},
			[]string{"collection", "status"}, // status: ok, error
		),
		searchesCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowledge_searches_total",
				Help: "Total number of similarity searches",
			},
			[]string{"collection", "status"},
		),
		searchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "knowledge_search_duration_seconds",
				Help:    "Duration of similarity searches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
		upsertDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "knowledge_upsert_duration_seconds",
				Help:    "Duration of chunk upserts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
	}
}

// ObserveUpsert 记录一次写入
func (m *Metrics) ObserveUpsert(collection string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.upsertsCounter.WithLabelValues(collection, statusLabel(err)).Inc()
	m.upsertDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

// ObserveSearch 记录一次检索
func (m *Metrics) ObserveSearch(collection string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.searchesCounter.WithLabelValues(collection, statusLabel(err)).Inc()
	m.searchDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
