package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

func testConfig(symbols ...string) domain.JobConfig {
	return domain.JobConfig{
		Name:          "backfill",
		Provider:      "csvfile",
		Dataset:       "TEST",
		Schema:        domain.SchemaTrades,
		Symbols:       symbols,
		SymbolType:    domain.SymbolTypeRaw,
		Start:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		ChunkSize:     2,
		MaxRetries:    1,
		BackoffMin:    time.Millisecond,
		BackoffMax:    time.Millisecond,
		InFlightLimit: 1,
	}
}

func writeFile(t *testing.T, root, symbol, content string) {
	t.Helper()
	dir := filepath.Join(root, "TEST")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(content), 0o644))
}

func collect(chunks <-chan domain.Chunk, errs <-chan error) ([]domain.Chunk, error) {
	var got []domain.Chunk
	for chunk := range chunks {
		got = append(got, chunk)
	}
	if err, ok := <-errs; ok && err != nil {
		return got, err
	}
	return got, nil
}

func TestStreamReadsAndChunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ESZ5",
		"symbol,ts_event,price,size\n"+
			"ESZ5,2025-06-02T13:30:00Z,5300.25,10\n"+
			"ESZ5,2025-06-02T13:30:01Z,5300.50,2\n"+
			"ESZ5,2025-06-02T13:30:02Z,5300.75,1\n")

	chunks, errs := New(root).Stream(context.Background(), testConfig("ESZ5"))
	got, err := collect(chunks, errs)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Len(t, got[0].Records, 2)
	assert.Len(t, got[1].Records, 1)
	assert.Equal(t, 0, got[0].Seq)
	assert.Equal(t, 1, got[1].Seq)

	record := got[0].Records[0]
	assert.Equal(t, "ESZ5", record["symbol"])
	assert.Equal(t, "5300.25", record["price"])
}

func TestStreamFiltersDateRange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ESZ5",
		"symbol,ts_event,price,size\n"+
			"ESZ5,2025-05-31T23:59:59Z,1,1\n"+ // before range
			"ESZ5,2025-06-15T13:30:00Z,2,1\n"+ // in range
			"ESZ5,2025-06-30T23:00:00Z,3,1\n"+ // last day, in range
			"ESZ5,2025-07-01T00:00:00Z,4,1\n") // after range

	chunks, errs := New(root).Stream(context.Background(), testConfig("ESZ5"))
	got, err := collect(chunks, errs)
	require.NoError(t, err)

	var prices []string
	for _, chunk := range got {
		for _, record := range chunk.Records {
			prices = append(prices, record["price"])
		}
	}
	assert.Equal(t, []string{"2", "3"}, prices)
}

func TestStreamMultipleSymbols(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ESZ5", "symbol,ts_event,price,size\nESZ5,2025-06-02T13:30:00Z,1,1\n")
	writeFile(t, root, "NQZ5", "symbol,ts_event,price,size\nNQZ5,2025-06-02T13:30:00Z,2,1\n")

	chunks, errs := New(root).Stream(context.Background(), testConfig("ESZ5", "NQZ5"))
	got, err := collect(chunks, errs)
	require.NoError(t, err)

	total := 0
	for _, chunk := range got {
		total += len(chunk.Records)
	}
	assert.Equal(t, 2, total)
}

func TestStreamMissingFileIsPermanent(t *testing.T) {
	chunks, errs := New(t.TempDir()).Stream(context.Background(), testConfig("ESZ5"))
	_, err := collect(chunks, errs)
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}

func TestStreamMissingHeaderIsPermanent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ESZ5", "")

	chunks, errs := New(root).Stream(context.Background(), testConfig("ESZ5"))
	_, err := collect(chunks, errs)
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}

func TestStreamCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ESZ5", "symbol,ts_event,price,size\nESZ5,2025-06-02T13:30:00Z,1,1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunks, errs := New(root).Stream(ctx, testConfig("ESZ5"))
	_, err := collect(chunks, errs)
	assert.ErrorIs(t, err, context.Canceled)
}
