package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRepository 任务状态快照仓储。每个任务一行，主键覆盖写。
type StateRepository struct {
	db *db.DB
}

// NewStateRepository 创建状态仓储
func NewStateRepository(database *db.DB) *StateRepository {
	return &StateRepository{db: database}
}

var _ domain.StateRepository = (*StateRepository)(nil)

// Put 覆盖写入任务快照
func (r *StateRepository) Put(ctx context.Context, state *domain.OperationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal operation state: %w", err)
	}

	model := OperationStateModel{
		JobID:     state.JobID,
		JobName:   state.JobName,
		Provider:  state.Provider,
		Dataset:   state.Dataset,
		Schema:    string(state.Schema),
		Status:    string(state.Status),
		StateJSON: string(data),
		StartedAt: state.StartedAt,
		EndedAt:   state.EndedAt,
		UpdatedAt: state.UpdatedAt,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "state", "ended_at", "updated_at",
		}),
	}).Create(&model).Error
}

// Get 按任务 ID 读取快照，不存在返回 nil
func (r *StateRepository) Get(ctx context.Context, jobID string) (*domain.OperationState, error) {
	var model OperationStateModel
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalState(&model)
}

// List 列出全部任务快照，按更新时间倒序
func (r *StateRepository) List(ctx context.Context) ([]*domain.OperationState, error) {
	var models []OperationStateModel
	if err := r.db.WithContext(ctx).Order("updated_at desc").Find(&models).Error; err != nil {
		return nil, err
	}
	states := make([]*domain.OperationState, 0, len(models))
	for i := range models {
		state, err := unmarshalState(&models[i])
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// Delete 删除任务快照
func (r *StateRepository) Delete(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&OperationStateModel{}).Error
}

func unmarshalState(model *OperationStateModel) (*domain.OperationState, error) {
	var state domain.OperationState
	if err := json.Unmarshal([]byte(model.StateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation state %s: %w", model.JobID, err)
	}
	return &state, nil
}
