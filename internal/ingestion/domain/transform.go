package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Transform 将供应商原始记录转换为规范记录。
// 对结构良好的输入是纯函数；字段缺失或格式非法返回 *TransformError，
// 调用方将其与校验失败同样路由到隔离区。
func Transform(raw RawRecord, schema Schema) (Record, error) {
	switch {
	case schema.IsOHLCV():
		return transformOHLCV(raw, schema)
	case schema == SchemaTrades:
		return transformTrade(raw)
	case schema == SchemaTBBO:
		return transformQuote(raw)
	case schema == SchemaStatistics:
		return transformStat(raw)
	case schema == SchemaDefinition:
		return transformDefinition(raw)
	default:
		return nil, &TransformError{Msg: "unsupported schema " + string(schema)}
	}
}

func transformOHLCV(raw RawRecord, schema Schema) (Record, error) {
	symbol, err := requireField(raw, "symbol")
	if err != nil {
		return nil, err
	}
	ts, err := parseEventTime(raw)
	if err != nil {
		return nil, err
	}

	bar := OHLCVBar{
		Symbol:      symbol,
		EventTime:   ts,
		Granularity: schema.Granularity(),
		Raw:         raw,
	}
	if bar.Open, err = parseDecimalField(raw, "open"); err != nil {
		return nil, err
	}
	if bar.High, err = parseDecimalField(raw, "high"); err != nil {
		return nil, err
	}
	if bar.Low, err = parseDecimalField(raw, "low"); err != nil {
		return nil, err
	}
	if bar.Close, err = parseDecimalField(raw, "close"); err != nil {
		return nil, err
	}
	if bar.Volume, err = parseDecimalField(raw, "volume"); err != nil {
		return nil, err
	}
	return bar, nil
}

func transformTrade(raw RawRecord) (Record, error) {
	symbol, err := requireField(raw, "symbol")
	if err != nil {
		return nil, err
	}
	ts, err := parseEventTime(raw)
	if err != nil {
		return nil, err
	}

	tick := TradeTick{
		Symbol:    symbol,
		EventTime: ts,
		Side:      raw["side"],
		Raw:       raw,
	}
	if tick.Price, err = parseDecimalField(raw, "price"); err != nil {
		return nil, err
	}
	if tick.Size, err = parseDecimalField(raw, "size"); err != nil {
		return nil, err
	}
	return tick, nil
}

func transformQuote(raw RawRecord) (Record, error) {
	symbol, err := requireField(raw, "symbol")
	if err != nil {
		return nil, err
	}
	ts, err := parseEventTime(raw)
	if err != nil {
		return nil, err
	}

	quote := QuoteTick{
		Symbol:    symbol,
		EventTime: ts,
		Raw:       raw,
	}
	if quote.BidPrice, err = parseOptionalDecimal(raw, "bid_px"); err != nil {
		return nil, err
	}
	if quote.AskPrice, err = parseOptionalDecimal(raw, "ask_px"); err != nil {
		return nil, err
	}
	if quote.BidSize, err = parseOptionalDecimal(raw, "bid_sz"); err != nil {
		return nil, err
	}
	if quote.AskSize, err = parseOptionalDecimal(raw, "ask_sz"); err != nil {
		return nil, err
	}
	return quote, nil
}

func transformStat(raw RawRecord) (Record, error) {
	symbol, err := requireField(raw, "symbol")
	if err != nil {
		return nil, err
	}
	ts, err := parseEventTime(raw)
	if err != nil {
		return nil, err
	}
	statType, err := requireField(raw, "stat_type")
	if err != nil {
		return nil, err
	}

	stat := StatRecord{
		Symbol:    symbol,
		EventTime: ts,
		StatType:  StatType(statType),
		Raw:       raw,
	}
	if stat.Value, err = parseDecimalField(raw, "value"); err != nil {
		return nil, err
	}
	return stat, nil
}

func transformDefinition(raw RawRecord) (Record, error) {
	symbol, err := requireField(raw, "symbol")
	if err != nil {
		return nil, err
	}
	ts, err := parseEventTime(raw)
	if err != nil {
		return nil, err
	}

	def := InstrumentDef{
		Symbol:    symbol,
		EventTime: ts,
		RawSymbol: raw["raw_symbol"],
		Asset:     raw["asset"],
		Exchange:  raw["exchange"],
		Currency:  raw["currency"],
		Raw:       raw,
	}
	if v, ok := raw["tick_size"]; ok && v != "" {
		if def.TickSize, err = parseDecimalField(raw, "tick_size"); err != nil {
			return nil, err
		}
	}
	if v, ok := raw["multiplier"]; ok && v != "" {
		if def.Multiplier, err = parseDecimalField(raw, "multiplier"); err != nil {
			return nil, err
		}
	}
	if v, ok := raw["expiration"]; ok && v != "" {
		exp, perr := parseTimestamp(v)
		if perr != nil {
			return nil, &TransformError{Field: "expiration", Msg: perr.Error()}
		}
		def.Expiration = exp
	}
	return def, nil
}

func requireField(raw RawRecord, field string) (string, error) {
	v, ok := raw[field]
	if !ok || v == "" {
		return "", &TransformError{Field: field, Msg: "required field missing"}
	}
	return v, nil
}

func parseDecimalField(raw RawRecord, field string) (decimal.Decimal, error) {
	v, err := requireField(raw, field)
	if err != nil {
		return decimal.Zero, err
	}
	d, derr := decimal.NewFromString(v)
	if derr != nil {
		return decimal.Zero, &TransformError{Field: field, Msg: "invalid decimal: " + v}
	}
	return d, nil
}

func parseOptionalDecimal(raw RawRecord, field string) (decimal.NullDecimal, error) {
	v, ok := raw[field]
	if !ok || v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, &TransformError{Field: field, Msg: "invalid decimal: " + v}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func parseEventTime(raw RawRecord) (time.Time, error) {
	v, err := requireField(raw, "ts_event")
	if err != nil {
		return time.Time{}, err
	}
	ts, perr := parseTimestamp(v)
	if perr != nil {
		return time.Time{}, &TransformError{Field: "ts_event", Msg: perr.Error()}
	}
	return ts, nil
}

// parseTimestamp 接受 RFC3339 或 Unix 纳秒时间戳
func parseTimestamp(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts.UTC(), nil
	}
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos).UTC(), nil
}
