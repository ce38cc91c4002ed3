// Package metrics 提供 Prometheus 指标封装与 HTTP 暴露
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/marketingest/pkg/logger"
)

// Metrics 摄取服务指标集合
type Metrics struct {
	registry *prometheus.Registry

	// RecordsStored 按 schema 统计新入库记录数
	RecordsStored *prometheus.CounterVec
	// RecordsDuplicate 按 schema 统计命中幂等键的重复记录数
	RecordsDuplicate *prometheus.CounterVec
	// RecordsQuarantined 按 schema 与失败原因统计隔离记录数
	RecordsQuarantined *prometheus.CounterVec
	// ChunksProcessed 按 schema 统计处理完成的分块数
	ChunksProcessed *prometheus.CounterVec
	// RetriesTotal 按阶段统计瞬态错误重试次数
	RetriesTotal *prometheus.CounterVec
	// ChunkDuration 按阶段统计单分块处理耗时
	ChunkDuration *prometheus.HistogramVec
	// JobsRunning 当前运行中的任务数
	JobsRunning prometheus.Gauge
	// JobsFinished 按终态统计结束的任务数
	JobsFinished *prometheus.CounterVec
}

// New 创建指标集合并注册到独立 registry
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	constLabels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: registry,
		RecordsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingestion_records_stored_total",
			Help:        "Number of records newly inserted into the target store.",
			ConstLabels: constLabels,
		}, []string{"schema"}),
		RecordsDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingestion_records_duplicate_total",
			Help:        "Number of records skipped because the idempotency key already existed.",
			ConstLabels: constLabels,
		}, []string{"schema"}),
		RecordsQuarantined: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingestion_records_quarantined_total",
			Help:        "Number of records routed to the quarantine sink.",
			ConstLabels: constLabels,
		}, []string{"schema", "reason"}),
		ChunksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingestion_chunks_processed_total",
			Help:        "Number of chunks fully processed.",
			ConstLabels: constLabels,
		}, []string{"schema"}),
		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingestion_retries_total",
			Help:        "Number of transient-error retries, by pipeline stage.",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		ChunkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "ingestion_chunk_duration_seconds",
			Help:        "Per-chunk processing latency, by pipeline stage.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "ingestion_jobs_running",
			Help:        "Number of ingestion jobs currently running.",
			ConstLabels: constLabels,
		}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingestion_jobs_finished_total",
			Help:        "Number of ingestion jobs finished, by terminal status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
	}
}

// ObserveChunkStage 记录某阶段耗时，返回函数用于 defer
func (m *Metrics) ObserveChunkStage(stage string) func() {
	start := time.Now()
	return func() {
		m.ChunkDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExposeHTTP 在独立端口暴露指标，阻塞运行
func (m *Metrics) ExposeHTTP(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Metrics endpoint listening", "addr", addr, "path", path)
	return http.ListenAndServe(addr, mux)
}
