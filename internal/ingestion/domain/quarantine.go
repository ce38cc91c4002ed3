package domain

import "time"

// QuarantineEntry 隔离条目：同一分块内同一失败原因的记录合并为一条。
// 写入一次不再更新；允许重复写入，下游按 Timestamp+JobName 去重。
type QuarantineEntry struct {
	Timestamp     time.Time         `json:"timestamp"`
	JobName       string            `json:"job_name"`
	Schema        Schema            `json:"schema"`
	ErrorType     string            `json:"error_type"`
	ErrorMessage  string            `json:"error_message"`
	FailedRecords []RawRecord       `json:"failed_records"`
	Context       map[string]string `json:"context,omitempty"`
}

// NewQuarantineEntry 创建隔离条目
func NewQuarantineEntry(jobName string, schema Schema, errorType, errorMessage string, failed []RawRecord) QuarantineEntry {
	return QuarantineEntry{
		Timestamp:     time.Now().UTC(),
		JobName:       jobName,
		Schema:        schema,
		ErrorType:     errorType,
		ErrorMessage:  errorMessage,
		FailedRecords: failed,
	}
}

// WithContext 附加上下文信息
func (e QuarantineEntry) WithContext(key, value string) QuarantineEntry {
	ctx := make(map[string]string, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	e.Context = ctx
	return e
}
