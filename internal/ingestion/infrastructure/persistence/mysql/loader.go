package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/db"
	"gorm.io/gorm"
)

const insertBatchSize = 1000

// StorageLoader MySQL 幂等入库实现。
// 通过表上的唯一索引执行 insert-or-ignore，重放同一记录集不产生重复行。
type StorageLoader struct {
	db *db.DB
}

// NewStorageLoader 创建入库器
func NewStorageLoader(database *db.DB) *StorageLoader {
	return &StorageLoader{db: database}
}

var _ domain.StorageLoader = (*StorageLoader)(nil)

// Store 批量写入规范记录，返回实际插入与命中幂等键的行数
func (l *StorageLoader) Store(ctx context.Context, records []domain.Record, schema domain.Schema) (domain.StoreResult, error) {
	if len(records) == 0 {
		return domain.StoreResult{}, nil
	}

	var inserted int64
	var err error

	switch {
	case schema.IsOHLCV():
		models := make([]OHLCVBarModel, 0, len(records))
		for _, r := range records {
			models = append(models, toOHLCVModel(r.(domain.OHLCVBar)))
		}
		inserted, err = l.db.InsertIgnoreConflict(ctx, models, insertBatchSize)
	case schema == domain.SchemaTrades:
		models := make([]TradeTickModel, 0, len(records))
		for _, r := range records {
			models = append(models, toTradeModel(r.(domain.TradeTick)))
		}
		inserted, err = l.db.InsertIgnoreConflict(ctx, models, insertBatchSize)
	case schema == domain.SchemaTBBO:
		models := make([]QuoteTickModel, 0, len(records))
		for _, r := range records {
			models = append(models, toQuoteModel(r.(domain.QuoteTick)))
		}
		inserted, err = l.db.InsertIgnoreConflict(ctx, models, insertBatchSize)
	case schema == domain.SchemaStatistics:
		models := make([]StatRecordModel, 0, len(records))
		for _, r := range records {
			models = append(models, toStatModel(r.(domain.StatRecord)))
		}
		inserted, err = l.db.InsertIgnoreConflict(ctx, models, insertBatchSize)
	case schema == domain.SchemaDefinition:
		models := make([]InstrumentDefModel, 0, len(records))
		for _, r := range records {
			models = append(models, toDefinitionModel(r.(domain.InstrumentDef)))
		}
		inserted, err = l.db.InsertIgnoreConflict(ctx, models, insertBatchSize)
	default:
		return domain.StoreResult{}, &domain.StorageError{
			Kind: domain.KindPermanent,
			Err:  fmt.Errorf("unsupported schema: %s", schema),
		}
	}

	if err != nil {
		return domain.StoreResult{}, classifyStorageError(err)
	}

	return domain.StoreResult{
		Inserted:   inserted,
		Duplicates: int64(len(records)) - inserted,
	}, nil
}

// classifyStorageError 存储错误分类：数据/模型类错误不可重试，
// 连接与超时类错误走瞬态重试路径。
func classifyStorageError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, gorm.ErrInvalidField),
		errors.Is(err, gorm.ErrInvalidValue),
		errors.Is(err, gorm.ErrModelValueRequired):
		return &domain.StorageError{Kind: domain.KindPermanent, Err: err}
	case errors.Is(err, context.Canceled):
		return err
	default:
		return &domain.StorageError{Kind: domain.KindTransient, Err: err}
	}
}
