package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/logger"
	"github.com/wyfcoding/marketingest/pkg/metrics"
)

// Defaults 任务级可覆盖参数的部署默认值
type Defaults struct {
	ChunkSize      int
	MaxRetries     int
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	InFlightLimit  int
	ExtractTimeout time.Duration
	StoreTimeout   time.Duration
}

// IngestionService 摄取任务应用服务：提交、查询、取消、清理。
// 并发任务各自持有独立编排器，仅共享状态仓储与连接池。
type IngestionService struct {
	registry domain.ExtractorRegistry
	loader   domain.StorageLoader
	sink     domain.QuarantineSink
	states   domain.StateRepository
	reporter domain.ProgressReporter
	metrics  *metrics.Metrics
	defaults Defaults

	mu      sync.Mutex
	running map[string]*runningJob
	wg      sync.WaitGroup
}

type runningJob struct {
	orchestrator *Orchestrator
	cancel       context.CancelFunc
}

// NewIngestionService 创建应用服务
func NewIngestionService(
	registry domain.ExtractorRegistry,
	loader domain.StorageLoader,
	sink domain.QuarantineSink,
	states domain.StateRepository,
	reporter domain.ProgressReporter,
	m *metrics.Metrics,
	defaults Defaults,
) *IngestionService {
	return &IngestionService{
		registry: registry,
		loader:   loader,
		sink:     sink,
		states:   states,
		reporter: reporter,
		metrics:  m,
		defaults: defaults,
		running:  make(map[string]*runningJob),
	}
}

// SubmitJob 校验并启动一个摄取任务，返回任务 ID。
// 任务在后台运行；进度通过状态仓储与进度事件对外可见。
func (s *IngestionService) SubmitJob(ctx context.Context, cmd SubmitJobCommand) (string, error) {
	cfg, err := s.buildConfig(cmd)
	if err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	// 供应商在配置阶段解析，未知供应商直接拒绝
	extractor, err := s.registry.Resolve(cfg.Provider)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	orchestrator := NewOrchestrator(jobID, cfg, extractor, s.loader, s.sink, s.states, s.reporter, s.metrics)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.running[jobID] = &runningJob{orchestrator: orchestrator, cancel: cancel}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobsRunning.Inc()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		_ = orchestrator.Run(runCtx)

		s.mu.Lock()
		delete(s.running, jobID)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.JobsRunning.Dec()
		}
	}()

	logger.Info(ctx, "Ingestion job submitted",
		"job_id", jobID,
		"job_name", cfg.Name,
		"provider", cfg.Provider,
		"schema", cfg.Schema,
		"symbols", len(cfg.Symbols),
	)
	return jobID, nil
}

// CancelJob 协作式取消运行中的任务
func (s *IngestionService) CancelJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	job, ok := s.running[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s is not running", jobID)
	}

	job.orchestrator.Cancel()
	logger.Info(ctx, "Ingestion job cancel requested", "job_id", jobID)
	return nil
}

// GetJob 查询任务进度。运行中的任务直接读内存状态，否则回源仓储。
func (s *IngestionService) GetJob(ctx context.Context, jobID string) (*JobDTO, error) {
	s.mu.Lock()
	job, ok := s.running[jobID]
	s.mu.Unlock()
	if ok {
		state := job.orchestrator.State()
		return toJobDTO(&state), nil
	}

	state, err := s.states.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return toJobDTO(state), nil
}

// ListJobs 列出全部任务快照
func (s *IngestionService) ListJobs(ctx context.Context) ([]*JobDTO, error) {
	states, err := s.states.List(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]*JobDTO, 0, len(states))
	for _, state := range states {
		dtos = append(dtos, toJobDTO(state))
	}
	return dtos, nil
}

// DeleteJob 删除终态任务的快照（清理策略）
func (s *IngestionService) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	_, isRunning := s.running[jobID]
	s.mu.Unlock()
	if isRunning {
		return fmt.Errorf("job %s is still running", jobID)
	}

	state, err := s.states.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	if !state.Status.Terminal() {
		return fmt.Errorf("job %s is not in a terminal state", jobID)
	}
	return s.states.Delete(ctx, jobID)
}

// Shutdown 取消全部运行中任务并等待编排器退出
func (s *IngestionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, job := range s.running {
		job.orchestrator.Cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// buildConfig 从命令构建任务配置，缺省项取部署默认值
func (s *IngestionService) buildConfig(cmd SubmitJobCommand) (domain.JobConfig, error) {
	schema, err := domain.ParseSchema(cmd.Schema)
	if err != nil {
		return domain.JobConfig{}, err
	}

	start, err := time.Parse("2006-01-02", cmd.Start)
	if err != nil {
		return domain.JobConfig{}, fmt.Errorf("invalid start date %q: %w", cmd.Start, err)
	}
	end, err := time.Parse("2006-01-02", cmd.End)
	if err != nil {
		return domain.JobConfig{}, fmt.Errorf("invalid end date %q: %w", cmd.End, err)
	}

	symbolType := domain.SymbolType(cmd.SymbolType)
	if cmd.SymbolType == "" {
		symbolType = domain.SymbolTypeRaw
	}

	name := cmd.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s-%s", cmd.Provider, cmd.Dataset, cmd.Schema)
	}

	cfg := domain.JobConfig{
		Name:           name,
		Provider:       cmd.Provider,
		Dataset:        cmd.Dataset,
		Schema:         schema,
		Symbols:        cmd.Symbols,
		SymbolType:     symbolType,
		Start:          start,
		End:            end,
		ChunkSize:      cmd.ChunkSize,
		MaxRetries:     s.defaults.MaxRetries,
		BackoffMin:     s.defaults.BackoffMin,
		BackoffMax:     s.defaults.BackoffMax,
		InFlightLimit:  s.defaults.InFlightLimit,
		ExtractTimeout: s.defaults.ExtractTimeout,
		StoreTimeout:   s.defaults.StoreTimeout,
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = s.defaults.ChunkSize
	}
	if cmd.MaxRetries > 0 {
		cfg.MaxRetries = cmd.MaxRetries
	}
	if cmd.BackoffMinMS > 0 {
		cfg.BackoffMin = time.Duration(cmd.BackoffMinMS) * time.Millisecond
	}
	if cmd.BackoffMaxMS > 0 {
		cfg.BackoffMax = time.Duration(cmd.BackoffMaxMS) * time.Millisecond
	}
	return cfg, nil
}
