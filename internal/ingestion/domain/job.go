package domain

import (
	"fmt"
	"time"
)

// SymbolType 符号解析方式
type SymbolType string

const (
	SymbolTypeRaw        SymbolType = "raw_symbol"
	SymbolTypeContinuous SymbolType = "continuous"
	SymbolTypeParent     SymbolType = "parent"
)

// JobConfig 摄取任务描述，创建后不可变
type JobConfig struct {
	// Name 任务名，用于隔离区命名空间与日志
	Name string
	// Provider 供应商标识，用于在注册表中解析 Extractor
	Provider string
	// Dataset 供应商数据集标识
	Dataset string
	// Schema 目标模式
	Schema Schema
	// Symbols 符号列表
	Symbols []string
	// SymbolType 符号解析方式
	SymbolType SymbolType
	// Start/End 闭区间日期范围
	Start time.Time
	End   time.Time
	// ChunkSize 每分块记录数
	ChunkSize int
	// MaxRetries 瞬态错误最大重试次数
	MaxRetries int
	// BackoffMin/BackoffMax 指数退避边界
	BackoffMin time.Duration
	BackoffMax time.Duration
	// InFlightLimit 在途分块上限
	InFlightLimit int
	// ExtractTimeout/StoreTimeout 单分块阶段超时
	ExtractTimeout time.Duration
	StoreTimeout   time.Duration
}

// Validate 在 Pending → Extracting 之前校验任务配置
func (c JobConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if !c.Schema.Valid() {
		return fmt.Errorf("unknown schema: %q", c.Schema)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	switch c.SymbolType {
	case SymbolTypeRaw, SymbolTypeContinuous, SymbolTypeParent:
	default:
		return fmt.Errorf("unknown symbol type: %q", c.SymbolType)
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	if c.Start.After(c.End) {
		return fmt.Errorf("start date %s is after end date %s", c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"))
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.BackoffMin <= 0 || c.BackoffMax < c.BackoffMin {
		return fmt.Errorf("invalid backoff bounds [%s, %s]", c.BackoffMin, c.BackoffMax)
	}
	if c.InFlightLimit <= 0 {
		return fmt.Errorf("in-flight limit must be positive")
	}
	return nil
}

// JobStatus 任务状态机状态
type JobStatus string

const (
	StatusPending                 JobStatus = "pending"
	StatusExtracting              JobStatus = "extracting"
	StatusTransforming            JobStatus = "transforming"
	StatusValidating              JobStatus = "validating"
	StatusStoring                 JobStatus = "storing"
	StatusCompleted               JobStatus = "completed"
	StatusCompletedWithQuarantine JobStatus = "completed_with_quarantine"
	StatusFailed                  JobStatus = "failed"
)

// Terminal 是否为终态
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithQuarantine, StatusFailed:
		return true
	}
	return false
}

// ChunkMetric 单分块处理指标
type ChunkMetric struct {
	Seq         int           `json:"seq"`
	Records     int           `json:"records"`
	Stored      int64         `json:"stored"`
	Duplicates  int64         `json:"duplicates"`
	Quarantined int           `json:"quarantined"`
	Duration    time.Duration `json:"duration"`
}

// OperationState 对外可见的任务进度，由编排器独占写入。
// 每次状态迁移与每个分块处理完成后快照到状态仓储。
type OperationState struct {
	JobID              string        `json:"job_id"`
	JobName            string        `json:"job_name"`
	Provider           string        `json:"provider"`
	Dataset            string        `json:"dataset"`
	Schema             Schema        `json:"schema"`
	Status             JobStatus     `json:"status"`
	Completed          int64         `json:"completed"`
	Total              int64         `json:"total"`
	RecordsStored      int64         `json:"records_stored"`
	RecordsDuplicate   int64         `json:"records_duplicate"`
	RecordsQuarantined int64         `json:"records_quarantined"`
	ChunksProcessed    int64         `json:"chunks_processed"`
	Errors             []string      `json:"errors,omitempty"`
	LastChunk          *ChunkMetric  `json:"last_chunk,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	EndedAt            *time.Time    `json:"ended_at,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ProgressEvent 进度事件，封闭的版本化结构，发往 ProgressReporter。
// 核心不依赖任何渲染方。
type ProgressEvent struct {
	Version            int        `json:"version"`
	JobID              string     `json:"job_id"`
	JobName            string     `json:"job_name"`
	Description        string     `json:"description"`
	Stage              string     `json:"stage,omitempty"`
	ChunkSeq           int        `json:"chunk_seq,omitempty"`
	RecordsInChunk     int        `json:"records_in_chunk,omitempty"`
	Completed          int64      `json:"completed"`
	Total              int64      `json:"total"`
	RecordsStored      int64      `json:"records_stored,omitempty"`
	RecordsQuarantined int64      `json:"records_quarantined,omitempty"`
	ChunksProcessed    int64      `json:"chunks_processed,omitempty"`
	Error              string     `json:"error,omitempty"`
	Final              bool       `json:"final,omitempty"`
	FinalStatus        JobStatus  `json:"final_status,omitempty"`
	Timestamp          time.Time  `json:"timestamp"`
}

// ProgressEventVersion 当前事件结构版本
const ProgressEventVersion = 1
