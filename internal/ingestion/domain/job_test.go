package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJobConfig() JobConfig {
	return JobConfig{
		Name:          "nightly-trades",
		Provider:      "httpapi",
		Dataset:       "GLBX.MDP3",
		Schema:        SchemaTrades,
		Symbols:       []string{"ESZ5"},
		SymbolType:    SymbolTypeRaw,
		Start:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		ChunkSize:     1000,
		MaxRetries:    3,
		BackoffMin:    time.Second,
		BackoffMax:    30 * time.Second,
		InFlightLimit: 2,
	}
}

func TestJobConfigValidate(t *testing.T) {
	require.NoError(t, validJobConfig().Validate())

	mutate := func(fn func(*JobConfig)) JobConfig {
		cfg := validJobConfig()
		fn(&cfg)
		return cfg
	}

	tests := []struct {
		name string
		cfg  JobConfig
	}{
		{"empty name", mutate(func(c *JobConfig) { c.Name = "" })},
		{"empty provider", mutate(func(c *JobConfig) { c.Provider = "" })},
		{"empty dataset", mutate(func(c *JobConfig) { c.Dataset = "" })},
		{"bad schema", mutate(func(c *JobConfig) { c.Schema = "nope" })},
		{"no symbols", mutate(func(c *JobConfig) { c.Symbols = nil })},
		{"bad symbol type", mutate(func(c *JobConfig) { c.SymbolType = "guess" })},
		{"start after end", mutate(func(c *JobConfig) { c.Start = c.End.AddDate(0, 1, 0) })},
		{"zero chunk size", mutate(func(c *JobConfig) { c.ChunkSize = 0 })},
		{"negative retries", mutate(func(c *JobConfig) { c.MaxRetries = -1 })},
		{"inverted backoff", mutate(func(c *JobConfig) { c.BackoffMax = c.BackoffMin / 2 })},
		{"zero in-flight", mutate(func(c *JobConfig) { c.InFlightLimit = 0 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCompletedWithQuarantine.Terminal())
	assert.True(t, StatusFailed.Terminal())

	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusExtracting.Terminal())
	assert.False(t, StatusTransforming.Terminal())
	assert.False(t, StatusValidating.Terminal())
	assert.False(t, StatusStoring.Terminal())
}

func TestParseSchema(t *testing.T) {
	for _, schema := range AllSchemas() {
		parsed, err := ParseSchema(string(schema))
		require.NoError(t, err)
		assert.Equal(t, schema, parsed)
	}

	_, err := ParseSchema("ohlcv-5m")
	assert.Error(t, err)
}

func TestSchemaGranularity(t *testing.T) {
	assert.Equal(t, "1m", SchemaOHLCV1M.Granularity())
	assert.Equal(t, "1h", SchemaOHLCV1H.Granularity())
	assert.Equal(t, "1d", SchemaOHLCV1D.Granularity())
	assert.Equal(t, "", SchemaTrades.Granularity())
}

func TestQuarantineEntryWithContext(t *testing.T) {
	entry := NewQuarantineEntry("job", SchemaTrades, "validation_error", RulePositivePrice, []RawRecord{{"symbol": "X"}})
	withCtx := entry.WithContext("chunk_seq", "4")

	assert.Empty(t, entry.Context)
	assert.Equal(t, "4", withCtx.Context["chunk_seq"])
	assert.Len(t, withCtx.FailedRecords, 1)
}
