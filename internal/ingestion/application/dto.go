package application

import (
	"time"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

// SubmitJobCommand 提交摄取任务命令
type SubmitJobCommand struct {
	Name       string   `json:"name"`
	Provider   string   `json:"provider"`
	Dataset    string   `json:"dataset"`
	Schema     string   `json:"schema"`
	Symbols    []string `json:"symbols"`
	SymbolType string   `json:"symbol_type"`
	// Start/End 闭区间日期，格式 2006-01-02
	Start string `json:"start"`
	End   string `json:"end"`
	// 以下为可选项，缺省取部署配置
	ChunkSize  int `json:"chunk_size,omitempty"`
	MaxRetries int `json:"max_retries,omitempty"`
	// 退避边界（毫秒）
	BackoffMinMS int `json:"backoff_min_ms,omitempty"`
	BackoffMaxMS int `json:"backoff_max_ms,omitempty"`
}

// JobDTO 任务进度 DTO
type JobDTO struct {
	JobID              string              `json:"job_id"`
	JobName            string              `json:"job_name"`
	Provider           string              `json:"provider"`
	Dataset            string              `json:"dataset"`
	Schema             string              `json:"schema"`
	Status             string              `json:"status"`
	Completed          int64               `json:"completed"`
	Total              int64               `json:"total"`
	RecordsStored      int64               `json:"records_stored"`
	RecordsDuplicate   int64               `json:"records_duplicate"`
	RecordsQuarantined int64               `json:"records_quarantined"`
	ChunksProcessed    int64               `json:"chunks_processed"`
	Errors             []string            `json:"errors,omitempty"`
	LastChunk          *domain.ChunkMetric `json:"last_chunk,omitempty"`
	StartedAt          time.Time           `json:"started_at"`
	EndedAt            *time.Time          `json:"ended_at,omitempty"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func toJobDTO(state *domain.OperationState) *JobDTO {
	if state == nil {
		return nil
	}
	return &JobDTO{
		JobID:              state.JobID,
		JobName:            state.JobName,
		Provider:           state.Provider,
		Dataset:            state.Dataset,
		Schema:             string(state.Schema),
		Status:             string(state.Status),
		Completed:          state.Completed,
		Total:              state.Total,
		RecordsStored:      state.RecordsStored,
		RecordsDuplicate:   state.RecordsDuplicate,
		RecordsQuarantined: state.RecordsQuarantined,
		ChunksProcessed:    state.ChunksProcessed,
		Errors:             state.Errors,
		LastChunk:          state.LastChunk,
		StartedAt:          state.StartedAt,
		EndedAt:            state.EndedAt,
		UpdatedAt:          state.UpdatedAt,
	}
}
