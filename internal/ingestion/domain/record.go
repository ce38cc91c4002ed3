package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord 供应商原始记录（字段名 → 字符串值）
type RawRecord map[string]string

// Chunk 一次抽取返回的有界记录批，Seq 在任务内单调递增
type Chunk struct {
	Seq     int
	Records []RawRecord
}

// Record 规范化记录。所有模式的规范记录实现此接口。
type Record interface {
	// Schema 返回记录所属模式
	Schema() Schema
	// Key 返回幂等键（目标表唯一约束字段的规范化拼接）
	Key() string
	// EventTimestamp 返回事件时间
	EventTimestamp() time.Time
	// Source 返回产生该记录的原始负载，用于隔离区落盘
	Source() RawRecord
}

// OHLCVBar K 线记录
type OHLCVBar struct {
	Symbol      string
	EventTime   time.Time
	Granularity string
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	Raw         RawRecord
}

func (b OHLCVBar) Schema() Schema {
	switch b.Granularity {
	case "1m":
		return SchemaOHLCV1M
	case "1h":
		return SchemaOHLCV1H
	default:
		return SchemaOHLCV1D
	}
}

func (b OHLCVBar) Key() string {
	return fmt.Sprintf("%s|%d|%s", b.Symbol, b.EventTime.UnixNano(), b.Granularity)
}

func (b OHLCVBar) EventTimestamp() time.Time { return b.EventTime }
func (b OHLCVBar) Source() RawRecord         { return b.Raw }

// TradeTick 逐笔成交记录
type TradeTick struct {
	Symbol    string
	EventTime time.Time
	Price     decimal.Decimal
	Size      decimal.Decimal
	Side      string
	Raw       RawRecord
}

func (t TradeTick) Schema() Schema { return SchemaTrades }

func (t TradeTick) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s", t.Symbol, t.EventTime.UnixNano(), t.Price.String(), t.Size.String())
}

func (t TradeTick) EventTimestamp() time.Time { return t.EventTime }
func (t TradeTick) Source() RawRecord         { return t.Raw }

// QuoteTick 盘口一档报价快照，买卖任一侧可缺失
type QuoteTick struct {
	Symbol    string
	EventTime time.Time
	BidPrice  decimal.NullDecimal
	AskPrice  decimal.NullDecimal
	BidSize   decimal.NullDecimal
	AskSize   decimal.NullDecimal
	Raw       RawRecord
}

func (q QuoteTick) Schema() Schema { return SchemaTBBO }

func (q QuoteTick) Key() string {
	return fmt.Sprintf("%s|%d", q.Symbol, q.EventTime.UnixNano())
}

func (q QuoteTick) EventTimestamp() time.Time { return q.EventTime }
func (q QuoteTick) Source() RawRecord         { return q.Raw }

// StatRecord 统计记录
type StatRecord struct {
	Symbol    string
	EventTime time.Time
	StatType  StatType
	Value     decimal.Decimal
	Raw       RawRecord
}

func (s StatRecord) Schema() Schema { return SchemaStatistics }

func (s StatRecord) Key() string {
	return fmt.Sprintf("%s|%d|%s", s.Symbol, s.EventTime.UnixNano(), s.StatType)
}

func (s StatRecord) EventTimestamp() time.Time { return s.EventTime }
func (s StatRecord) Source() RawRecord         { return s.Raw }

// InstrumentDef 合约定义记录
type InstrumentDef struct {
	Symbol     string
	EventTime  time.Time
	RawSymbol  string
	Asset      string
	Exchange   string
	Currency   string
	TickSize   decimal.Decimal
	Multiplier decimal.Decimal
	Expiration time.Time
	Raw        RawRecord
}

func (d InstrumentDef) Schema() Schema { return SchemaDefinition }

func (d InstrumentDef) Key() string {
	return fmt.Sprintf("%s|%d", d.Symbol, d.EventTime.UnixNano())
}

func (d InstrumentDef) EventTimestamp() time.Time { return d.EventTime }
func (d InstrumentDef) Source() RawRecord         { return d.Raw }
