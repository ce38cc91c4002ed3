package quarantine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

func testEntry(jobName string) domain.QuarantineEntry {
	return domain.QuarantineEntry{
		Timestamp:    time.Date(2025, 6, 2, 13, 30, 0, 123456789, time.UTC),
		JobName:      jobName,
		Schema:       domain.SchemaTrades,
		ErrorType:    "validation_error",
		ErrorMessage: domain.RulePositivePrice,
		FailedRecords: []domain.RawRecord{
			{"symbol": "ESZ5", "price": "-1", "size": "10"},
		},
		Context: map[string]string{"chunk_seq": "4"},
	}
}

func TestFileSinkRecordRoundTrip(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	entry := testEntry("nightly-trades")
	require.NoError(t, sink.Record(context.Background(), entry))

	paths, err := sink.List("nightly-trades")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	var got domain.QuarantineEntry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, entry.JobName, got.JobName)
	assert.Equal(t, entry.ErrorMessage, got.ErrorMessage)
	assert.Equal(t, entry.FailedRecords, got.FailedRecords)
	assert.Equal(t, "4", got.Context["chunk_seq"])

	// 文件名携带时间戳与原因
	name := filepath.Base(paths[0])
	assert.Contains(t, name, domain.RulePositivePrice)
}

func TestFileSinkSanitizesNames(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	entry := testEntry("weird/job name:2025")
	entry.ErrorMessage = "field \"ts_event\": bad * value?"
	require.NoError(t, sink.Record(context.Background(), entry))

	paths, err := sink.List("weird/job name:2025")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.NotContains(t, filepath.Base(paths[0]), "/")
	assert.NotContains(t, filepath.Base(paths[0]), "*")
}

func TestFileSinkListEmpty(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	paths, err := sink.List("no-such-job")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFileSinkNoTempFilesLeftBehind(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		entry := testEntry("job")
		entry.Timestamp = entry.Timestamp.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, sink.Record(context.Background(), entry))
	}

	entries, err := os.ReadDir(filepath.Join(root, "job"))
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestFileSinkRequiresRoot(t *testing.T) {
	_, err := NewFileSink("")
	assert.Error(t, err)
}

func TestFileSinkHonoursCancelledContext(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sink.Record(ctx, testEntry("job")))
}
