package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

func testConfig(start, end time.Time) domain.JobConfig {
	return domain.JobConfig{
		Name:           "test",
		Provider:       "httpapi",
		Dataset:        "GLBX.MDP3",
		Schema:         domain.SchemaTrades,
		Symbols:        []string{"ESZ5", "NQZ5"},
		SymbolType:     domain.SymbolTypeRaw,
		Start:          start,
		End:            end,
		ChunkSize:      3,
		MaxRetries:     1,
		BackoffMin:     time.Millisecond,
		BackoffMax:     time.Millisecond,
		InFlightLimit:  1,
		ExtractTimeout: time.Second,
	}
}

func collect(t *testing.T, chunks <-chan domain.Chunk, errs <-chan error) ([]domain.Chunk, error) {
	t.Helper()
	var got []domain.Chunk
	for chunk := range chunks {
		got = append(got, chunk)
	}
	if err, ok := <-errs; ok && err != nil {
		return got, err
	}
	return got, nil
}

func TestStreamChunksRecords(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path+"?"+r.URL.RawQuery)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		rows := []map[string]any{
			{"symbol": "ESZ5", "ts_event": "2025-06-02T13:30:00Z", "price": 5300.25, "size": 10},
			{"symbol": "ESZ5", "ts_event": "2025-06-02T13:30:01Z", "price": 5300.50, "size": 2},
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
	defer server.Close()

	extractor := New(server.URL, "secret", WithChunkDays(7))
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

	chunks, errs := extractor.Stream(context.Background(), testConfig(start, end))
	got, err := collect(t, chunks, errs)
	require.NoError(t, err)

	// 14 天按 7 天分两段，每段 2 条，ChunkSize 3 → 两个分块（3 + 1）
	require.Len(t, requests, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Seq)
	assert.Equal(t, 1, got[1].Seq)
	assert.Len(t, got[0].Records, 3)
	assert.Len(t, got[1].Records, 1)

	record := got[0].Records[0]
	assert.Equal(t, "ESZ5", record["symbol"])
	assert.Equal(t, "5300.25", record["price"])
	assert.Equal(t, "10", record["size"])

	assert.Contains(t, requests[0], "/v1/GLBX.MDP3/trades")
	assert.Contains(t, requests[0], "symbols=ESZ5%2CNQZ5")
	assert.Contains(t, requests[0], "start=2025-06-01")
	assert.Contains(t, requests[0], "end=2025-06-07")
	assert.Contains(t, requests[1], "start=2025-06-08")
	assert.Contains(t, requests[1], "end=2025-06-14")
}

func TestStreamRateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	extractor := New(server.URL, "")
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	chunks, errs := extractor.Stream(context.Background(), testConfig(day, day))
	got, err := collect(t, chunks, errs)
	require.Error(t, err)
	assert.Empty(t, got)
	assert.True(t, domain.IsTransient(err))
}

func TestStreamNotFoundIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "symbol not found", http.StatusNotFound)
	}))
	defer server.Close()

	extractor := New(server.URL, "")
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	chunks, errs := extractor.Stream(context.Background(), testConfig(day, day))
	_, err := collect(t, chunks, errs)
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.NotEmpty(t, perr.Remediation)
}

func TestStreamMalformedPayloadIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	extractor := New(server.URL, "")
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	chunks, errs := extractor.Stream(context.Background(), testConfig(day, day))
	_, err := collect(t, chunks, errs)
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}

func TestClassifyStatus(t *testing.T) {
	assert.True(t, domain.IsTransient(classifyStatus(http.StatusTooManyRequests, nil)))
	assert.True(t, domain.IsTransient(classifyStatus(http.StatusBadGateway, nil)))
	assert.True(t, domain.IsTransient(classifyStatus(http.StatusRequestTimeout, nil)))
	assert.True(t, domain.IsPermanent(classifyStatus(http.StatusBadRequest, []byte("bad range"))))
	assert.True(t, domain.IsPermanent(classifyStatus(http.StatusUnauthorized, nil)))
}

func TestSplitDateRange(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	ranges := splitDateRange(from, to, 4)
	require.Len(t, ranges, 3)
	assert.Equal(t, from, ranges[0].from)
	assert.Equal(t, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), ranges[0].to)
	assert.Equal(t, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), ranges[1].from)
	assert.Equal(t, to, ranges[2].to)

	// 单日与逆序
	assert.Len(t, splitDateRange(from, from, 30), 1)
	assert.Empty(t, splitDateRange(to, from, 30))
}

func TestToRawRecord(t *testing.T) {
	record := toRawRecord(map[string]any{
		"symbol": "ESZ5",
		"price":  5300.25,
		"size":   float64(10),
		"flag":   true,
		"gone":   nil,
		"nested": map[string]any{"a": 1},
	})

	assert.Equal(t, "ESZ5", record["symbol"])
	assert.Equal(t, "5300.25", record["price"])
	assert.Equal(t, "10", record["size"])
	assert.Equal(t, "true", record["flag"])
	_, ok := record["gone"]
	assert.False(t, ok)
	assert.JSONEq(t, `{"a":1}`, record["nested"])
}
