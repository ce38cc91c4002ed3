package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient provider", NewTransientProviderError("rate limited", nil), true},
		{"permanent provider", NewPermanentProviderError("bad symbol", nil), false},
		{"transient storage", &StorageError{Kind: KindTransient, Err: errors.New("deadlock")}, true},
		{"permanent storage", &StorageError{Kind: KindPermanent, Err: errors.New("schema mismatch")}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("store: %w", context.DeadlineExceeded), true},
		{"cancelled", ErrCancelled, false},
		{"context canceled", context.Canceled, false},
		{"wrapped transient", fmt.Errorf("extract: %w", NewTransientProviderError("reset", nil)), true},
		{"plain error", errors.New("boom"), false},
		// 重试耗尽即使包裹瞬态原因也不再可重试
		{"exhausted over transient storage", &RetriesExhaustedError{Attempts: 3, Last: &StorageError{Kind: KindTransient, Err: errors.New("deadlock")}}, false},
		{"exhausted over transient provider", &RetriesExhaustedError{Attempts: 3, Last: NewTransientProviderError("timeout", nil)}, false},
		{"wrapped exhausted", fmt.Errorf("job: %w", &RetriesExhaustedError{Attempts: 2, Last: NewTransientProviderError("reset", nil)}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(NewPermanentProviderError("bad symbol", nil)))
	assert.True(t, IsPermanent(&StorageError{Kind: KindPermanent, Err: errors.New("bad value")}))
	assert.False(t, IsPermanent(NewTransientProviderError("timeout", nil)))
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("boom")))

	// 瞬态错误经重试耗尽升级为永久
	exhausted := &RetriesExhaustedError{Attempts: 3, Last: &StorageError{Kind: KindTransient, Err: errors.New("deadlock")}}
	assert.True(t, IsPermanent(exhausted))
}

func TestRetriesExhaustedUnwraps(t *testing.T) {
	cause := NewTransientProviderError("timeout", nil)
	err := &RetriesExhaustedError{Attempts: 3, Last: cause}

	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "3 retries")
}

func TestProviderErrorMessage(t *testing.T) {
	err := NewPermanentProviderError("symbol not found", errors.New("404"))
	assert.Contains(t, err.Error(), "permanent")
	assert.Contains(t, err.Error(), "symbol not found")
}
