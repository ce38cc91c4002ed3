package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformOHLCV(t *testing.T) {
	raw := RawRecord{
		"symbol":   "ESZ5",
		"ts_event": "2025-06-02T13:30:00Z",
		"open":     "5300.25",
		"high":     "5310.50",
		"low":      "5295.00",
		"close":    "5308.75",
		"volume":   "125000",
	}

	record, err := Transform(raw, SchemaOHLCV1M)
	require.NoError(t, err)

	bar, ok := record.(OHLCVBar)
	require.True(t, ok)
	assert.Equal(t, "ESZ5", bar.Symbol)
	assert.Equal(t, "1m", bar.Granularity)
	assert.True(t, bar.Open.Equal(decimal.RequireFromString("5300.25")))
	assert.True(t, bar.High.Equal(decimal.RequireFromString("5310.50")))
	assert.Equal(t, time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC), bar.EventTimestamp())
	assert.Equal(t, SchemaOHLCV1M, bar.Schema())
	assert.Equal(t, raw, bar.Source())
}

func TestTransformMissingField(t *testing.T) {
	raw := RawRecord{
		"symbol":   "ESZ5",
		"ts_event": "2025-06-02T13:30:00Z",
		"open":     "5300.25",
		"high":     "5310.50",
		"low":      "5295.00",
		// close missing
		"volume": "125000",
	}

	_, err := Transform(raw, SchemaOHLCV1M)
	require.Error(t, err)

	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "close", terr.Field)
}

func TestTransformInvalidDecimal(t *testing.T) {
	raw := RawRecord{
		"symbol":   "AAPL",
		"ts_event": "2025-06-02T13:30:00Z",
		"price":    "not-a-number",
		"size":     "100",
	}

	_, err := Transform(raw, SchemaTrades)
	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "price", terr.Field)
}

func TestTransformUnixNanoTimestamp(t *testing.T) {
	raw := RawRecord{
		"symbol":   "AAPL",
		"ts_event": "1748871000000000500",
		"price":    "211.40",
		"size":     "100",
	}

	record, err := Transform(raw, SchemaTrades)
	require.NoError(t, err)

	tick := record.(TradeTick)
	assert.Equal(t, int64(1748871000000000500), tick.EventTime.UnixNano())
}

func TestTransformQuoteOptionalSides(t *testing.T) {
	raw := RawRecord{
		"symbol":   "AAPL",
		"ts_event": "2025-06-02T13:30:00Z",
		"bid_px":   "211.39",
		"bid_sz":   "300",
		// ask side missing entirely
	}

	record, err := Transform(raw, SchemaTBBO)
	require.NoError(t, err)

	quote := record.(QuoteTick)
	assert.True(t, quote.BidPrice.Valid)
	assert.False(t, quote.AskPrice.Valid)
	assert.False(t, quote.AskSize.Valid)
}

func TestTransformStat(t *testing.T) {
	raw := RawRecord{
		"symbol":    "CLZ5",
		"ts_event":  "2025-06-02T00:00:00Z",
		"stat_type": "open_interest",
		"value":     "418211",
	}

	record, err := Transform(raw, SchemaStatistics)
	require.NoError(t, err)

	stat := record.(StatRecord)
	assert.Equal(t, StatOpenInterest, stat.StatType)
	assert.True(t, stat.StatType.Known())
}

func TestTransformDefinitionOptionalFields(t *testing.T) {
	raw := RawRecord{
		"symbol":     "ESZ5",
		"ts_event":   "2025-06-02T00:00:00Z",
		"raw_symbol": "ESZ5",
		"asset":      "ES",
		"exchange":   "XCME",
		"currency":   "USD",
	}

	record, err := Transform(raw, SchemaDefinition)
	require.NoError(t, err)

	def := record.(InstrumentDef)
	assert.Equal(t, "XCME", def.Exchange)
	assert.True(t, def.TickSize.IsZero())
	assert.True(t, def.Expiration.IsZero())

	raw["tick_size"] = "0.25"
	raw["expiration"] = "2025-12-19T14:30:00Z"
	record, err = Transform(raw, SchemaDefinition)
	require.NoError(t, err)

	def = record.(InstrumentDef)
	assert.True(t, def.TickSize.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, 2025, def.Expiration.Year())
}

func TestTransformUnsupportedSchema(t *testing.T) {
	_, err := Transform(RawRecord{}, Schema("bogus"))
	var terr *TransformError
	require.ErrorAs(t, err, &terr)
}

func TestRecordKeysAreStable(t *testing.T) {
	ts := time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)

	bar := OHLCVBar{Symbol: "ESZ5", EventTime: ts, Granularity: "1d"}
	assert.Equal(t, bar.Key(), bar.Key())

	tick := TradeTick{
		Symbol:    "AAPL",
		EventTime: ts,
		Price:     decimal.RequireFromString("211.40"),
		Size:      decimal.RequireFromString("100"),
	}
	other := tick
	other.Size = decimal.RequireFromString("200")
	assert.NotEqual(t, tick.Key(), other.Key())
}
