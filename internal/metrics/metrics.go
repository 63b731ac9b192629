package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brandtrend"

// Metrics 进程内指标；nil 接收者上的方法均为空操作
type Metrics struct {
	registry *prometheus.Registry

	ingestRuns     *prometheus.CounterVec
	ingestPeriods  *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	datasetBrands  prometheus.Gauge
	datasetColumns prometheus.Gauge
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by final status.",
		}, []string{"status"}),
		ingestPeriods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_periods_total",
			Help:      "Fetched periods by result.",
		}, []string{"result"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Trend query latency including dataset load.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"granularity"}),
		datasetBrands: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_brands",
			Help:      "Brand rows in the persisted matrix.",
		}),
		datasetColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_columns",
			Help:      "Columns in the persisted matrix.",
		}),
	}

	m.registry.MustRegister(
		m.ingestRuns,
		m.ingestPeriods,
		m.queryDuration,
		m.datasetBrands,
		m.datasetColumns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun 记录一次采集运行
func (m *Metrics) ObserveRun(status string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.ingestRuns.WithLabelValues(status).Inc()
	m.ingestPeriods.WithLabelValues("succeeded").Add(float64(succeeded))
	m.ingestPeriods.WithLabelValues("failed").Add(float64(failed))
}

// ObserveQuery 记录一次查询耗时
func (m *Metrics) ObserveQuery(granularity string, d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(granularity).Observe(d.Seconds())
}

// SetDataset 更新宽表规模
func (m *Metrics) SetDataset(brands, columns int) {
	if m == nil {
		return
	}
	m.datasetBrands.Set(float64(brands))
	m.datasetColumns.Set(float64(columns))
}
