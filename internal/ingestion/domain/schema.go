package domain

import "fmt"

// Schema 数据模式，决定目标表、转换规则与幂等键
type Schema string

const (
	SchemaOHLCV1M    Schema = "ohlcv-1m"
	SchemaOHLCV1H    Schema = "ohlcv-1h"
	SchemaOHLCV1D    Schema = "ohlcv-1d"
	SchemaTrades     Schema = "trades"
	SchemaTBBO       Schema = "tbbo"
	SchemaStatistics Schema = "statistics"
	SchemaDefinition Schema = "definition"
)

// AllSchemas 支持的全部模式
func AllSchemas() []Schema {
	return []Schema{
		SchemaOHLCV1M,
		SchemaOHLCV1H,
		SchemaOHLCV1D,
		SchemaTrades,
		SchemaTBBO,
		SchemaStatistics,
		SchemaDefinition,
	}
}

// ParseSchema 解析模式名
func ParseSchema(s string) (Schema, error) {
	for _, schema := range AllSchemas() {
		if string(schema) == s {
			return schema, nil
		}
	}
	return "", fmt.Errorf("unknown schema: %q", s)
}

// IsOHLCV 是否为 K 线模式
func (s Schema) IsOHLCV() bool {
	switch s {
	case SchemaOHLCV1M, SchemaOHLCV1H, SchemaOHLCV1D:
		return true
	}
	return false
}

// Granularity 返回 K 线粒度（1m/1h/1d），非 K 线模式返回空串
func (s Schema) Granularity() string {
	switch s {
	case SchemaOHLCV1M:
		return "1m"
	case SchemaOHLCV1H:
		return "1h"
	case SchemaOHLCV1D:
		return "1d"
	}
	return ""
}

// Valid 模式是否合法
func (s Schema) Valid() bool {
	_, err := ParseSchema(string(s))
	return err == nil
}

// StatType 统计记录类型
type StatType string

const (
	StatOpenInterest    StatType = "open_interest"
	StatSettlementPrice StatType = "settlement_price"
	StatOpenPrice       StatType = "open_price"
	StatClosePrice      StatType = "close_price"
	StatHighPrice       StatType = "high_price"
	StatLowPrice        StatType = "low_price"
	StatVolume          StatType = "volume"
	StatVWAP            StatType = "vwap"
)

// KnownStatTypes 已知统计类型集合
var KnownStatTypes = map[StatType]struct{}{
	StatOpenInterest:    {},
	StatSettlementPrice: {},
	StatOpenPrice:       {},
	StatClosePrice:      {},
	StatHighPrice:       {},
	StatLowPrice:        {},
	StatVolume:          {},
	StatVWAP:            {},
}

// Known 统计类型是否在已知枚举内
func (t StatType) Known() bool {
	_, ok := KnownStatTypes[t]
	return ok
}
