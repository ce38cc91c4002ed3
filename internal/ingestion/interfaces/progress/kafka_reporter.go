// Package progress contains ProgressReporter implementations. Reporters must
// never block the pipeline; slow consumers drop events rather than stall jobs.
package progress

import (
	"context"
	"time"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/logger"
	"github.com/wyfcoding/marketingest/pkg/mq"
)

const (
	eventBufferSize = 256
	publishTimeout  = 5 * time.Second
)

// KafkaReporter 将进度事件发布到 Kafka 主题。
// 事件经缓冲通道异步投递，缓冲满时丢弃并记录，绝不反压管线。
type KafkaReporter struct {
	producer *mq.KafkaProducer
	topic    string
	events   chan domain.ProgressEvent
	done     chan struct{}
}

// NewKafkaReporter 创建异步 Kafka 进度上报器
func NewKafkaReporter(producer *mq.KafkaProducer, topic string) *KafkaReporter {
	r := &KafkaReporter{
		producer: producer,
		topic:    topic,
		events:   make(chan domain.ProgressEvent, eventBufferSize),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

var _ domain.ProgressReporter = (*KafkaReporter)(nil)

// Report 入队事件，缓冲满时丢弃
func (r *KafkaReporter) Report(event domain.ProgressEvent) {
	select {
	case r.events <- event:
	default:
		logger.Warn(context.Background(), "Progress event dropped, buffer full",
			"job_id", event.JobID,
			"description", event.Description,
		)
	}
}

// Close 排空缓冲并停止投递循环
func (r *KafkaReporter) Close() {
	close(r.events)
	<-r.done
}

func (r *KafkaReporter) loop() {
	defer close(r.done)
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		// 以 job id 为分区键，保证单任务事件有序
		if err := r.producer.SendMessage(ctx, r.topic, event.JobID, event); err != nil {
			logger.Warn(ctx, "Failed to publish progress event",
				"job_id", event.JobID,
				"error", err,
			)
		}
		cancel()
	}
}
