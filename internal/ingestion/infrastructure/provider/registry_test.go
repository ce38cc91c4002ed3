package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

type nopExtractor struct{}

func (nopExtractor) Stream(ctx context.Context, cfg domain.JobConfig) (<-chan domain.Chunk, <-chan error) {
	chunks := make(chan domain.Chunk)
	errs := make(chan error)
	close(chunks)
	close(errs)
	return chunks, errs
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	registry.Register("httpapi", nopExtractor{})
	registry.Register("csvfile", nopExtractor{})

	extractor, err := registry.Resolve("httpapi")
	require.NoError(t, err)
	assert.NotNil(t, extractor)

	assert.Equal(t, []string{"csvfile", "httpapi"}, registry.Names())
}

func TestRegistryResolveUnknown(t *testing.T) {
	registry := NewRegistry()
	registry.Register("httpapi", nopExtractor{})

	_, err := registry.Resolve("databento")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databento")
	assert.Contains(t, err.Error(), "httpapi")
}
