package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "imginject"

// Metrics 是一次运行的计数器集合。
//
// 每次运行持有独立的 Registry，不注册到全局 DefaultRegisterer；
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil。
type Metrics struct {
	reg *prometheus.Registry

	DocumentsTotal   *prometheus.CounterVec
	RecordsTotal     *prometheus.CounterVec
	DiscoveriesTotal *prometheus.CounterVec
	ImageFetches     *prometheus.CounterVec
	DocumentDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		DocumentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by final status.",
		}, []string{"status"}),
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records visited, by kind (titled, untitled).",
		}, []string{"kind"}),
		DiscoveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Image URL discovery attempts, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ImageFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_fetches_total",
			Help:      "Image downloads, by result (ok, failed).",
		}, []string{"result"}),
		DocumentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Wall time spent on one document, pacing included.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Document(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(status).Inc()
	m.DocumentDuration.Observe(d.Seconds())
}

func (m *Metrics) Record(titled bool) {
	if m == nil {
		return
	}
	kind := "untitled"
	if titled {
		kind = "titled"
	}
	m.RecordsTotal.WithLabelValues(kind).Inc()
}

// Discovery 记录一次来源尝试；outcome 取 ok|empty|fetch。
func (m *Metrics) Discovery(provider, outcome string) {
	if m == nil {
		return
	}
	m.DiscoveriesTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ImageFetch(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.ImageFetches.WithLabelValues(result).Inc()
}

// WriteFile 以 Prometheus 文本格式写出全部指标（供 node_exporter textfile collector 采集）。
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
