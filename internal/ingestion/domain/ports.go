package domain

import "context"

// Extractor 上游抽取器。Stream 返回有限的分块序列，不可中途重启；
// 错误通过 error 通道给出并结束流。重试策略由编排器统一持有，
// 抽取器自身不做重试。
type Extractor interface {
	Stream(ctx context.Context, cfg JobConfig) (<-chan Chunk, <-chan error)
}

// ExtractorRegistry 按供应商名解析抽取器的类型化注册表。
// 在任务配置阶段解析，不做运行时类型探测。
type ExtractorRegistry interface {
	Resolve(provider string) (Extractor, error)
}

// StoreResult 入库结果：实际新插入与命中幂等键被跳过的行数。
// 仅用于可观测性，正确性由幂等键保证。
type StoreResult struct {
	Inserted   int64
	Duplicates int64
}

// StorageLoader 幂等入库。以模式幂等键为唯一约束执行 insert-or-ignore，
// 对重叠记录集重复调用不会产生重复行。
type StorageLoader interface {
	Store(ctx context.Context, records []Record, schema Schema) (StoreResult, error)
}

// QuarantineSink 隔离区。写入尽力而为且不得抛出：落盘失败由调用方
// 记录日志并累积到 OperationState.Errors，不中断批次。
type QuarantineSink interface {
	Record(ctx context.Context, entry QuarantineEntry) error
}

// StateRepository 任务状态仓储：按 job id 读写 OperationState 快照。
// 每个任务只写自己的记录，允许多任务并发写入。
type StateRepository interface {
	Get(ctx context.Context, jobID string) (*OperationState, error)
	Put(ctx context.Context, state *OperationState) error
	List(ctx context.Context) ([]*OperationState, error)
	Delete(ctx context.Context, jobID string) error
}

// ProgressReporter 进度观察方。实现必须不阻塞管线（缓冲或即发即弃）。
type ProgressReporter interface {
	Report(event ProgressEvent)
}
