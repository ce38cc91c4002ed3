package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

// OHLCVBarModel K 线表映射。唯一索引即幂等键：标的 + 事件时间 + 粒度。
type OHLCVBarModel struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	Symbol      string          `gorm:"column:symbol;type:varchar(32);uniqueIndex:uq_ohlcv,priority:1;not null"`
	EventTime   time.Time       `gorm:"column:event_time;type:datetime(6);uniqueIndex:uq_ohlcv,priority:2;not null"`
	Granularity string          `gorm:"column:granularity;type:varchar(8);uniqueIndex:uq_ohlcv,priority:3;not null"`
	Open        decimal.Decimal `gorm:"column:open;type:decimal(32,18);not null"`
	High        decimal.Decimal `gorm:"column:high;type:decimal(32,18);not null"`
	Low         decimal.Decimal `gorm:"column:low;type:decimal(32,18);not null"`
	Close       decimal.Decimal `gorm:"column:close;type:decimal(32,18);not null"`
	Volume      decimal.Decimal `gorm:"column:volume;type:decimal(32,18);not null"`
}

func (OHLCVBarModel) TableName() string { return "ohlcv_bars" }

// TradeTickModel 逐笔成交表映射。幂等键：标的 + 事件时间 + 价格 + 数量。
type TradeTickModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	Symbol    string          `gorm:"column:symbol;type:varchar(32);uniqueIndex:uq_trade,priority:1;not null"`
	EventTime time.Time       `gorm:"column:event_time;type:datetime(6);uniqueIndex:uq_trade,priority:2;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(32,18);uniqueIndex:uq_trade,priority:3;not null"`
	Size      decimal.Decimal `gorm:"column:size;type:decimal(32,18);uniqueIndex:uq_trade,priority:4;not null"`
	Side      string          `gorm:"column:side;type:varchar(8)"`
}

func (TradeTickModel) TableName() string { return "trade_ticks" }

// QuoteTickModel 盘口一档报价表映射。幂等键：标的 + 事件时间。买卖侧可为空。
type QuoteTickModel struct {
	ID        uint                `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time           `gorm:"column:created_at"`
	Symbol    string              `gorm:"column:symbol;type:varchar(32);uniqueIndex:uq_quote,priority:1;not null"`
	EventTime time.Time           `gorm:"column:event_time;type:datetime(6);uniqueIndex:uq_quote,priority:2;not null"`
	BidPrice  decimal.NullDecimal `gorm:"column:bid_price;type:decimal(32,18)"`
	AskPrice  decimal.NullDecimal `gorm:"column:ask_price;type:decimal(32,18)"`
	BidSize   decimal.NullDecimal `gorm:"column:bid_size;type:decimal(32,18)"`
	AskSize   decimal.NullDecimal `gorm:"column:ask_size;type:decimal(32,18)"`
}

func (QuoteTickModel) TableName() string { return "quote_ticks" }

// StatRecordModel 统计记录表映射。幂等键：标的 + 事件时间 + 统计类型。
type StatRecordModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	Symbol    string          `gorm:"column:symbol;type:varchar(32);uniqueIndex:uq_stat,priority:1;not null"`
	EventTime time.Time       `gorm:"column:event_time;type:datetime(6);uniqueIndex:uq_stat,priority:2;not null"`
	StatType  string          `gorm:"column:stat_type;type:varchar(32);uniqueIndex:uq_stat,priority:3;not null"`
	Value     decimal.Decimal `gorm:"column:value;type:decimal(32,18);not null"`
}

func (StatRecordModel) TableName() string { return "stat_records" }

// InstrumentDefModel 合约定义表映射。幂等键：标的 + 事件时间。
type InstrumentDefModel struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	Symbol     string          `gorm:"column:symbol;type:varchar(32);uniqueIndex:uq_def,priority:1;not null"`
	EventTime  time.Time       `gorm:"column:event_time;type:datetime(6);uniqueIndex:uq_def,priority:2;not null"`
	RawSymbol  string          `gorm:"column:raw_symbol;type:varchar(64)"`
	Asset      string          `gorm:"column:asset;type:varchar(32)"`
	Exchange   string          `gorm:"column:exchange;type:varchar(16)"`
	Currency   string          `gorm:"column:currency;type:varchar(8)"`
	TickSize   decimal.Decimal `gorm:"column:tick_size;type:decimal(32,18)"`
	Multiplier decimal.Decimal `gorm:"column:multiplier;type:decimal(32,18)"`
	Expiration *time.Time      `gorm:"column:expiration;type:datetime(6)"`
}

func (InstrumentDefModel) TableName() string { return "instrument_defs" }

// OperationStateModel 任务状态快照表映射。每个任务一行，更新覆盖写。
type OperationStateModel struct {
	JobID     string     `gorm:"column:job_id;type:varchar(64);primaryKey"`
	JobName   string     `gorm:"column:job_name;type:varchar(128);index;not null"`
	Provider  string     `gorm:"column:provider;type:varchar(32);not null"`
	Dataset   string     `gorm:"column:dataset;type:varchar(64);not null"`
	Schema    string     `gorm:"column:schema_name;type:varchar(32);not null"`
	Status    string     `gorm:"column:status;type:varchar(32);index;not null"`
	StateJSON string     `gorm:"column:state;type:json;not null"`
	StartedAt time.Time  `gorm:"column:started_at;type:datetime(6);not null"`
	EndedAt   *time.Time `gorm:"column:ended_at;type:datetime(6)"`
	UpdatedAt time.Time  `gorm:"column:updated_at;type:datetime(6);not null"`
}

func (OperationStateModel) TableName() string { return "operation_states" }

// AllModels AutoMigrate 用的模型清单
func AllModels() []any {
	return []any{
		&OHLCVBarModel{},
		&TradeTickModel{},
		&QuoteTickModel{},
		&StatRecordModel{},
		&InstrumentDefModel{},
		&OperationStateModel{},
	}
}

// --- mapping helpers ---

func toOHLCVModel(b domain.OHLCVBar) OHLCVBarModel {
	return OHLCVBarModel{
		Symbol:      b.Symbol,
		EventTime:   b.EventTime,
		Granularity: b.Granularity,
		Open:        b.Open,
		High:        b.High,
		Low:         b.Low,
		Close:       b.Close,
		Volume:      b.Volume,
	}
}

func toTradeModel(t domain.TradeTick) TradeTickModel {
	return TradeTickModel{
		Symbol:    t.Symbol,
		EventTime: t.EventTime,
		Price:     t.Price,
		Size:      t.Size,
		Side:      t.Side,
	}
}

func toQuoteModel(q domain.QuoteTick) QuoteTickModel {
	return QuoteTickModel{
		Symbol:    q.Symbol,
		EventTime: q.EventTime,
		BidPrice:  q.BidPrice,
		AskPrice:  q.AskPrice,
		BidSize:   q.BidSize,
		AskSize:   q.AskSize,
	}
}

func toStatModel(s domain.StatRecord) StatRecordModel {
	return StatRecordModel{
		Symbol:    s.Symbol,
		EventTime: s.EventTime,
		StatType:  string(s.StatType),
		Value:     s.Value,
	}
}

func toDefinitionModel(d domain.InstrumentDef) InstrumentDefModel {
	model := InstrumentDefModel{
		Symbol:     d.Symbol,
		EventTime:  d.EventTime,
		RawSymbol:  d.RawSymbol,
		Asset:      d.Asset,
		Exchange:   d.Exchange,
		Currency:   d.Currency,
		TickSize:   d.TickSize,
		Multiplier: d.Multiplier,
	}
	if !d.Expiration.IsZero() {
		exp := d.Expiration
		model.Expiration = &exp
	}
	return model
}
