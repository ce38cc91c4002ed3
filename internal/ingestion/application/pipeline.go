package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/logger"
	"github.com/wyfcoding/marketingest/pkg/metrics"
	"github.com/wyfcoding/marketingest/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// Orchestrator 单个摄取任务的管线编排器。
// 持有重试策略与任务状态机；OperationState 由其独占写入。
type Orchestrator struct {
	jobID     string
	cfg       domain.JobConfig
	extractor domain.Extractor
	loader    domain.StorageLoader
	sink      domain.QuarantineSink
	states    domain.StateRepository
	reporter  domain.ProgressReporter
	metrics   *metrics.Metrics

	cancelled atomic.Bool

	// mu 串行化状态更新与进度事件发布，保证累计计数单调
	mu    sync.Mutex
	state domain.OperationState
	// seenChunks 已计数的分块序号。流重放会重复投递同一分块，
	// 累计计数与进度事件对每个序号只记一次。
	seenChunks map[int]struct{}
}

// NewOrchestrator 创建编排器，任务处于 Pending 状态
func NewOrchestrator(
	jobID string,
	cfg domain.JobConfig,
	extractor domain.Extractor,
	loader domain.StorageLoader,
	sink domain.QuarantineSink,
	states domain.StateRepository,
	reporter domain.ProgressReporter,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		jobID:      jobID,
		cfg:        cfg,
		extractor:  extractor,
		loader:     loader,
		sink:       sink,
		states:     states,
		reporter:   reporter,
		metrics:    m,
		seenChunks: make(map[int]struct{}),
		state: domain.OperationState{
			JobID:     jobID,
			JobName:   cfg.Name,
			Provider:  cfg.Provider,
			Dataset:   cfg.Dataset,
			Schema:    cfg.Schema,
			Status:    domain.StatusPending,
			StartedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		},
	}
}

// Cancel 协作式取消：在分块边界生效，不打断处理中的分块
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// State 返回当前状态快照
func (o *Orchestrator) State() domain.OperationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cloneStateLocked()
}

// Run 执行任务直至终态。返回的错误与最终 OperationState 中的错误一致。
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx = logger.WithJobID(ctx, o.jobID)

	if err := o.cfg.Validate(); err != nil {
		o.fail(ctx, domain.NewPermanentProviderError("invalid job config", err))
		return err
	}

	o.snapshot(ctx)
	o.transition(ctx, domain.StatusExtracting)
	o.report("job started", "extract")

	// 抽取流不可中途重启：瞬态流错误在任务级重试，从头重放整个流。
	// 已入库分块因幂等键而安全，重复隔离条目由下游按时间戳去重。
	var attempt int
	for {
		err := o.runStream(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrCancelled) {
			o.fail(ctx, err)
			return err
		}
		if !domain.IsTransient(err) {
			o.fail(ctx, err)
			return err
		}

		attempt++
		if attempt > o.cfg.MaxRetries {
			exhausted := &domain.RetriesExhaustedError{Attempts: o.cfg.MaxRetries, Last: err}
			o.fail(ctx, exhausted)
			return exhausted
		}

		if o.metrics != nil {
			o.metrics.RetriesTotal.WithLabelValues("extract").Inc()
		}
		delay := utils.BackoffDelay(attempt-1, o.cfg.BackoffMin, o.cfg.BackoffMax)
		logger.Warn(ctx, "Transient extraction error, retrying",
			"attempt", attempt,
			"max_retries", o.cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)
		if serr := utils.SleepContext(ctx, delay); serr != nil {
			o.fail(ctx, domain.ErrCancelled)
			return domain.ErrCancelled
		}
	}

	return o.finish(ctx)
}

// report 发布一条非终态进度事件。
// 事件构造与投递都在锁内完成：上报方按约定不阻塞，锁内投递保证
// 观察方看到的累计计数不回退。
func (o *Orchestrator) report(description, stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reporter.Report(domain.ProgressEvent{
		Version:            domain.ProgressEventVersion,
		JobID:              o.jobID,
		JobName:            o.cfg.Name,
		Description:        description,
		Stage:              stage,
		Completed:          o.state.Completed,
		Total:              o.state.Total,
		RecordsStored:      o.state.RecordsStored,
		RecordsQuarantined: o.state.RecordsQuarantined,
		ChunksProcessed:    o.state.ChunksProcessed,
		Timestamp:          time.Now().UTC(),
	})
}

// runStream 打开抽取流并以有界并发处理分块
func (o *Orchestrator) runStream(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errs := o.extractor.Stream(streamCtx, o.cfg)

	var g errgroup.Group
	g.SetLimit(o.cfg.InFlightLimit)

	var procErr atomic.Value

	for {
		// 分块抽取超时在此统一执行，不依赖各抽取器自行实现
		chunk, ok, werr := o.waitChunk(ctx, chunks)
		if werr != nil {
			cancel()
			for range chunks {
			}
			_ = g.Wait()
			return werr
		}
		if !ok {
			break
		}

		// 取消只在分块边界检查
		if o.cancelled.Load() || ctx.Err() != nil {
			cancel()
			for range chunks {
				// 排空通道让抽取器退出
			}
			_ = g.Wait()
			if o.cancelled.Load() {
				return domain.ErrCancelled
			}
			return ctx.Err()
		}
		if v := procErr.Load(); v != nil {
			cancel()
			for range chunks {
			}
			_ = g.Wait()
			return v.(error)
		}

		c := chunk
		g.Go(func() error {
			if err := o.processChunk(streamCtx, c); err != nil {
				procErr.CompareAndSwap(nil, err)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// 抽取器在关闭分块通道后至多投递一个终止错误
	if err, ok := <-errs; ok && err != nil {
		return err
	}
	return nil
}

// waitChunk 等待下一个分块，受 ExtractTimeout 约束。
// 超时按瞬态供应商错误处理，走任务级重试路径。
func (o *Orchestrator) waitChunk(ctx context.Context, chunks <-chan domain.Chunk) (domain.Chunk, bool, error) {
	if o.cfg.ExtractTimeout <= 0 {
		chunk, ok := <-chunks
		return chunk, ok, nil
	}

	timer := time.NewTimer(o.cfg.ExtractTimeout)
	defer timer.Stop()

	select {
	case chunk, ok := <-chunks:
		return chunk, ok, nil
	case <-timer.C:
		return domain.Chunk{}, false, domain.NewTransientProviderError(
			fmt.Sprintf("no chunk received within %s", o.cfg.ExtractTimeout),
			context.DeadlineExceeded,
		)
	case <-ctx.Done():
		return domain.Chunk{}, false, ctx.Err()
	}
}

// processChunk 单分块算法：转换 → 校验 → 入库 → 隔离 → 进度事件。
// 块内严格串行，块间可并发。
func (o *Orchestrator) processChunk(ctx context.Context, chunk domain.Chunk) error {
	start := time.Now()

	// 转换。失败记录成为隔离候选，不中断批次。
	o.transition(ctx, domain.StatusTransforming)
	records := make([]domain.Record, 0, len(chunk.Records))
	transformFailed := make(map[string][]domain.RawRecord)
	for _, raw := range chunk.Records {
		record, err := domain.Transform(raw, o.cfg.Schema)
		if err != nil {
			transformFailed[err.Error()] = append(transformFailed[err.Error()], raw)
			continue
		}
		records = append(records, record)
	}

	// 校验。首个失败规则作为隔离原因。
	o.transition(ctx, domain.StatusValidating)
	valid, invalid := domain.Validate(records, o.cfg.Schema)
	ruleFailed := make(map[string][]domain.RawRecord)
	for _, violation := range invalid {
		ruleFailed[violation.RuleID] = append(ruleFailed[violation.RuleID], violation.Record.Source())
	}

	// 入库。瞬态存储错误在分块粒度重试，幂等键保证重放安全。
	o.transition(ctx, domain.StatusStoring)
	var result domain.StoreResult
	if len(valid) > 0 {
		var err error
		result, err = o.storeWithRetry(ctx, valid)
		if err != nil {
			return err
		}
	}

	// 隔离。每个不同失败原因一条隔离条目；落盘失败不终止任务。
	quarantined := 0
	for msg, raws := range transformFailed {
		quarantined += len(raws)
		o.quarantine(ctx, domain.ReasonTransform, msg, raws, chunk.Seq)
	}
	for ruleID, raws := range ruleFailed {
		quarantined += len(raws)
		o.quarantine(ctx, "validation_error", ruleID, raws, chunk.Seq)
		if o.metrics != nil {
			o.metrics.RecordsQuarantined.WithLabelValues(string(o.cfg.Schema), ruleID).Add(float64(len(raws)))
		}
	}

	if o.metrics != nil {
		o.metrics.RecordsStored.WithLabelValues(string(o.cfg.Schema)).Add(float64(result.Inserted))
		o.metrics.RecordsDuplicate.WithLabelValues(string(o.cfg.Schema)).Add(float64(result.Duplicates))
		o.metrics.ChunksProcessed.WithLabelValues(string(o.cfg.Schema)).Inc()
		o.metrics.ChunkDuration.WithLabelValues("chunk").Observe(time.Since(start).Seconds())
	}

	o.completeChunk(ctx, domain.ChunkMetric{
		Seq:         chunk.Seq,
		Records:     len(chunk.Records),
		Stored:      result.Inserted,
		Duplicates:  result.Duplicates,
		Quarantined: quarantined,
		Duration:    time.Since(start),
	})
	return nil
}

// storeWithRetry 带退避的分块入库
func (o *Orchestrator) storeWithRetry(ctx context.Context, records []domain.Record) (domain.StoreResult, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if o.metrics != nil {
				o.metrics.RetriesTotal.WithLabelValues("store").Inc()
			}
			delay := utils.BackoffDelay(attempt-1, o.cfg.BackoffMin, o.cfg.BackoffMax)
			logger.Warn(ctx, "Transient storage error, retrying chunk",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			if err := utils.SleepContext(ctx, delay); err != nil {
				return domain.StoreResult{}, domain.ErrCancelled
			}
		}

		storeCtx := ctx
		var cancel context.CancelFunc
		if o.cfg.StoreTimeout > 0 {
			storeCtx, cancel = context.WithTimeout(ctx, o.cfg.StoreTimeout)
		}
		result, err := o.loader.Store(storeCtx, records, o.cfg.Schema)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		if !domain.IsTransient(err) {
			return domain.StoreResult{}, err
		}
		lastErr = err
	}
	return domain.StoreResult{}, &domain.RetriesExhaustedError{Attempts: o.cfg.MaxRetries, Last: lastErr}
}

// quarantine 写入一条隔离条目并更新计数
func (o *Orchestrator) quarantine(ctx context.Context, errorType, reason string, raws []domain.RawRecord, chunkSeq int) {
	entry := domain.NewQuarantineEntry(o.cfg.Name, o.cfg.Schema, errorType, reason, raws).
		WithContext("job_id", o.jobID).
		WithContext("chunk_seq", fmt.Sprintf("%d", chunkSeq))

	if err := o.sink.Record(ctx, entry); err != nil {
		qerr := &domain.QuarantinePersistenceError{Entry: entry, Err: err}
		logger.Error(ctx, "Quarantine sink write failed", "reason", reason, "error", err)
		o.mu.Lock()
		o.state.Errors = append(o.state.Errors, qerr.Error())
		o.mu.Unlock()
	}
}

// completeChunk 更新累计计数、快照状态并发布进度事件。
// 投递在锁内完成，并发分块不会把事件按回退的计数顺序送达观察方。
// 重放的分块序号不再计数，最终 Completed/Total 即真实记录数。
func (o *Orchestrator) completeChunk(ctx context.Context, metric domain.ChunkMetric) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, replayed := o.seenChunks[metric.Seq]; replayed {
		o.state.UpdatedAt = time.Now().UTC()
		o.putSnapshotLocked(ctx)
		return
	}
	o.seenChunks[metric.Seq] = struct{}{}

	o.state.Completed += int64(metric.Records)
	o.state.RecordsStored += metric.Stored
	o.state.RecordsDuplicate += metric.Duplicates
	o.state.RecordsQuarantined += int64(metric.Quarantined)
	o.state.ChunksProcessed++
	o.state.LastChunk = &metric
	o.state.UpdatedAt = time.Now().UTC()

	o.putSnapshotLocked(ctx)
	o.reporter.Report(domain.ProgressEvent{
		Version:            domain.ProgressEventVersion,
		JobID:              o.jobID,
		JobName:            o.cfg.Name,
		Description:        fmt.Sprintf("chunk %d processed", metric.Seq),
		Stage:              "storage",
		ChunkSeq:           metric.Seq,
		RecordsInChunk:     metric.Records,
		Completed:          o.state.Completed,
		Total:              o.state.Total,
		RecordsStored:      o.state.RecordsStored,
		RecordsQuarantined: o.state.RecordsQuarantined,
		ChunksProcessed:    o.state.ChunksProcessed,
		Timestamp:          time.Now().UTC(),
	})
}

// finish 所有分块处理完毕后的终态判定：
// 无隔离 → Completed；有隔离 → CompletedWithQuarantine。
// 零分块的永久失败在 Run 中已经走 Failed 路径（决策见 DESIGN.md）。
func (o *Orchestrator) finish(ctx context.Context) error {
	o.mu.Lock()
	o.state.Total = o.state.Completed
	final := domain.StatusCompleted
	if o.state.RecordsQuarantined > 0 {
		final = domain.StatusCompletedWithQuarantine
	}
	o.state.Status = final
	now := time.Now().UTC()
	o.state.EndedAt = &now
	o.state.UpdatedAt = now
	state := o.cloneStateLocked()
	o.putSnapshotLocked(ctx)
	// 终态事件同样在锁内投递，保证落在所有分块事件之后
	o.reporter.Report(domain.ProgressEvent{
		Version:            domain.ProgressEventVersion,
		JobID:              o.jobID,
		JobName:            o.cfg.Name,
		Description:        "job finished",
		Completed:          state.Completed,
		Total:              state.Total,
		RecordsStored:      state.RecordsStored,
		RecordsQuarantined: state.RecordsQuarantined,
		ChunksProcessed:    state.ChunksProcessed,
		Final:              true,
		FinalStatus:        final,
		Timestamp:          time.Now().UTC(),
	})
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.JobsFinished.WithLabelValues(string(final)).Inc()
	}

	logger.Info(ctx, "Ingestion job finished",
		"status", final,
		"records_stored", state.RecordsStored,
		"records_quarantined", state.RecordsQuarantined,
		"chunks", state.ChunksProcessed,
	)
	return nil
}

// fail 进入 Failed 终态并对外发布最终事件
func (o *Orchestrator) fail(ctx context.Context, cause error) {
	o.mu.Lock()
	o.state.Status = domain.StatusFailed
	o.state.Errors = append(o.state.Errors, cause.Error())
	now := time.Now().UTC()
	o.state.EndedAt = &now
	o.state.UpdatedAt = now
	state := o.cloneStateLocked()
	o.putSnapshotLocked(ctx)
	o.reporter.Report(domain.ProgressEvent{
		Version:            domain.ProgressEventVersion,
		JobID:              o.jobID,
		JobName:            o.cfg.Name,
		Description:        "job failed",
		Completed:          state.Completed,
		Total:              state.Total,
		RecordsStored:      state.RecordsStored,
		RecordsQuarantined: state.RecordsQuarantined,
		ChunksProcessed:    state.ChunksProcessed,
		Error:              cause.Error(),
		Final:              true,
		FinalStatus:        domain.StatusFailed,
		Timestamp:          time.Now().UTC(),
	})
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.JobsFinished.WithLabelValues(string(domain.StatusFailed)).Inc()
	}

	logger.Error(ctx, "Ingestion job failed", "error", cause)
}

// transition 更新状态机非终态阶段，终态之后不再变更
func (o *Orchestrator) transition(ctx context.Context, status domain.JobStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Status.Terminal() || o.state.Status == status {
		return
	}
	o.state.Status = status
	o.state.UpdatedAt = time.Now().UTC()
	o.putSnapshotLocked(ctx)
}

// snapshot 写入当前状态快照
func (o *Orchestrator) snapshot(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.putSnapshotLocked(ctx)
}

// putSnapshotLocked 持锁写入快照，失败仅记录日志
func (o *Orchestrator) putSnapshotLocked(ctx context.Context) {
	state := o.cloneStateLocked()
	if err := o.states.Put(ctx, &state); err != nil {
		logger.Error(ctx, "Failed to persist operation state", "error", err)
	}
}

func (o *Orchestrator) cloneStateLocked() domain.OperationState {
	state := o.state
	state.Errors = append([]string(nil), o.state.Errors...)
	if o.state.LastChunk != nil {
		metric := *o.state.LastChunk
		state.LastChunk = &metric
	}
	return state
}
