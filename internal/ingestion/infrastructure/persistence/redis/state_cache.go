package redis

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/cache"
	"github.com/wyfcoding/marketingest/pkg/logger"
)

const (
	stateKeyPrefix = "marketingest:job:"
	stateTTL       = 24 * time.Hour
)

// CachedStateRepository 以 Redis 作为任务状态读缓存的仓储装饰器。
// 写路径同步写缓存与底层仓储（MySQL 为准），读路径先查缓存。
// 缓存故障只记录日志，不影响正确性。
type CachedStateRepository struct {
	inner domain.StateRepository
	cache *cache.RedisCache
}

// NewCachedStateRepository 创建缓存装饰器
func NewCachedStateRepository(inner domain.StateRepository, redisCache *cache.RedisCache) *CachedStateRepository {
	return &CachedStateRepository{inner: inner, cache: redisCache}
}

var _ domain.StateRepository = (*CachedStateRepository)(nil)

// Put 先写底层仓储再刷新缓存
func (r *CachedStateRepository) Put(ctx context.Context, state *domain.OperationState) error {
	if err := r.inner.Put(ctx, state); err != nil {
		return err
	}
	if err := r.cache.SetJSON(ctx, stateKeyPrefix+state.JobID, state, stateTTL); err != nil {
		logger.Warn(ctx, "Failed to cache operation state", "job_id", state.JobID, "error", err)
	}
	return nil
}

// Get 缓存命中直接返回，未命中回源并回填
func (r *CachedStateRepository) Get(ctx context.Context, jobID string) (*domain.OperationState, error) {
	var cached domain.OperationState
	err := r.cache.GetJSON(ctx, stateKeyPrefix+jobID, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		logger.Warn(ctx, "Operation state cache read failed", "job_id", jobID, "error", err)
	}

	state, err := r.inner.Get(ctx, jobID)
	if err != nil || state == nil {
		return state, err
	}
	if cerr := r.cache.SetJSON(ctx, stateKeyPrefix+jobID, state, stateTTL); cerr != nil {
		logger.Warn(ctx, "Failed to backfill operation state cache", "job_id", jobID, "error", cerr)
	}
	return state, nil
}

// List 列表查询直接回源
func (r *CachedStateRepository) List(ctx context.Context) ([]*domain.OperationState, error) {
	return r.inner.List(ctx)
}

// Delete 删除底层记录并失效缓存
func (r *CachedStateRepository) Delete(ctx context.Context, jobID string) error {
	if err := r.inner.Delete(ctx, jobID); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, stateKeyPrefix+jobID); err != nil {
		logger.Warn(ctx, "Failed to invalidate operation state cache", "job_id", jobID, "error", err)
	}
	return nil
}
