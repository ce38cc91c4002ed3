package progress

import (
	"context"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/logger"
)

// LogReporter 将进度事件写入结构化日志，Kafka 未启用时的默认上报器
type LogReporter struct{}

// NewLogReporter 创建日志进度上报器
func NewLogReporter() *LogReporter {
	return &LogReporter{}
}

var _ domain.ProgressReporter = (*LogReporter)(nil)

// Report 记录一条进度日志
func (r *LogReporter) Report(event domain.ProgressEvent) {
	attrs := []any{
		"job_id", event.JobID,
		"job_name", event.JobName,
		"description", event.Description,
		"completed", event.Completed,
		"total", event.Total,
	}
	if event.Stage != "" {
		attrs = append(attrs, "stage", event.Stage)
	}
	if event.RecordsQuarantined > 0 {
		attrs = append(attrs, "records_quarantined", event.RecordsQuarantined)
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	if event.Final {
		attrs = append(attrs, "final_status", event.FinalStatus)
	}
	logger.Info(context.Background(), "Job progress", attrs...)
}

// MultiReporter 扇出到多个上报器
type MultiReporter struct {
	reporters []domain.ProgressReporter
}

// NewMultiReporter 创建扇出上报器
func NewMultiReporter(reporters ...domain.ProgressReporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

var _ domain.ProgressReporter = (*MultiReporter)(nil)

// Report 按注册顺序投递
func (r *MultiReporter) Report(event domain.ProgressEvent) {
	for _, reporter := range r.reporters {
		reporter.Report(event)
	}
}
