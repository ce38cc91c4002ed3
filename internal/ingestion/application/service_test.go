package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

type fakeRegistry struct {
	extractor domain.Extractor
}

func (f *fakeRegistry) Resolve(provider string) (domain.Extractor, error) {
	if provider != "fake" {
		return nil, assert.AnError
	}
	return f.extractor, nil
}

func testDefaults() Defaults {
	return Defaults{
		ChunkSize:      100,
		MaxRetries:     2,
		BackoffMin:     time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		InFlightLimit:  2,
		ExtractTimeout: time.Second,
		StoreTimeout:   time.Second,
	}
}

func testCommand() SubmitJobCommand {
	return SubmitJobCommand{
		Name:     "nightly-trades",
		Provider: "fake",
		Dataset:  "TEST",
		Schema:   "trades",
		Symbols:  []string{"ESZ5"},
		Start:    "2025-06-01",
		End:      "2025-06-30",
	}
}

func waitTerminal(t *testing.T, svc *IngestionService, jobID string) *JobDTO {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		dto, err := svc.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if dto != nil && domain.JobStatus(dto.Status).Terminal() {
			return dto
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
	return nil
}

func TestSubmitJobRunsToCompletion(t *testing.T) {
	registry := &fakeRegistry{extractor: &fakeExtractor{chunks: tradeChunks(250, 100, 0)}}
	loader := newFakeLoader()
	states := newMemStates()
	svc := NewIngestionService(registry, loader, &fakeSink{}, states, &captureReporter{}, nil, testDefaults())

	jobID, err := svc.SubmitJob(context.Background(), testCommand())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	dto := waitTerminal(t, svc, jobID)
	assert.Equal(t, string(domain.StatusCompleted), dto.Status)
	assert.Equal(t, int64(250), dto.RecordsStored)
	assert.Equal(t, "nightly-trades", dto.JobName)

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestSubmitJobRejectsUnknownProvider(t *testing.T) {
	svc := NewIngestionService(&fakeRegistry{}, newFakeLoader(), &fakeSink{}, newMemStates(), &captureReporter{}, nil, testDefaults())

	cmd := testCommand()
	cmd.Provider = "nope"
	_, err := svc.SubmitJob(context.Background(), cmd)
	assert.Error(t, err)
}

func TestSubmitJobRejectsBadDates(t *testing.T) {
	svc := NewIngestionService(&fakeRegistry{extractor: &fakeExtractor{}}, newFakeLoader(), &fakeSink{}, newMemStates(), &captureReporter{}, nil, testDefaults())

	cmd := testCommand()
	cmd.Start = "2025-07-01"
	cmd.End = "2025-06-01"
	_, err := svc.SubmitJob(context.Background(), cmd)
	assert.Error(t, err)

	cmd = testCommand()
	cmd.Schema = "ohlcv-5m"
	_, err = svc.SubmitJob(context.Background(), cmd)
	assert.Error(t, err)
}

func TestCancelJobNotRunning(t *testing.T) {
	svc := NewIngestionService(&fakeRegistry{extractor: &fakeExtractor{}}, newFakeLoader(), &fakeSink{}, newMemStates(), &captureReporter{}, nil, testDefaults())
	assert.Error(t, svc.CancelJob(context.Background(), "missing"))
}

func TestDeleteJobOnlyTerminal(t *testing.T) {
	states := newMemStates()
	svc := NewIngestionService(&fakeRegistry{extractor: &fakeExtractor{chunks: tradeChunks(100, 100, 0)}}, newFakeLoader(), &fakeSink{}, states, &captureReporter{}, nil, testDefaults())

	jobID, err := svc.SubmitJob(context.Background(), testCommand())
	require.NoError(t, err)
	waitTerminal(t, svc, jobID)
	require.NoError(t, svc.Shutdown(context.Background()))

	require.NoError(t, svc.DeleteJob(context.Background(), jobID))
	dto, err := svc.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Nil(t, dto)

	assert.Error(t, svc.DeleteJob(context.Background(), "missing"))
}

func TestListJobs(t *testing.T) {
	states := newMemStates()
	svc := NewIngestionService(&fakeRegistry{extractor: &fakeExtractor{chunks: tradeChunks(100, 100, 0)}}, newFakeLoader(), &fakeSink{}, states, &captureReporter{}, nil, testDefaults())

	jobID, err := svc.SubmitJob(context.Background(), testCommand())
	require.NoError(t, err)
	waitTerminal(t, svc, jobID)
	require.NoError(t, svc.Shutdown(context.Background()))

	dtos, err := svc.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, jobID, dtos[0].JobID)
}
