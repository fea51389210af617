// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Classification Tests
// ==========================

func TestCodeOf(t *testing.T) {
	cause := errors.New("connection reset by peer")

	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "direct standard error",
			err:      NewEntityCatalogUnavailableError("CURSO", cause),
			expected: ErrCodeEntityCatalogUnavailable,
		},
		{
			name:     "standard error behind a fmt wrap",
			err:      fmt.Errorf("turn failed: %w", NewExtractionFailedError(cause)),
			expected: ErrCodeExtractionFailed,
		},
		{
			name:     "plain error has no code",
			err:      cause,
			expected: "",
		},
		{
			name:     "nil error has no code",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"llm timeout", NewLLMTimeoutError("generate", cause), true},
		{"synthesis failure", NewLLMSynthesisFailedError(cause), true},
		{"catalog unavailable", NewEntityCatalogUnavailableError("CURSO", cause), true},
		{"database connection", NewDatabaseConnectionFailedError(cause), true},
		{"retrieval failure", NewRetrievalFailedError(cause), true},
		{"state store unavailable", NewStateStoreUnavailableError(cause), true},
		{"extraction failure", NewExtractionFailedError(cause), false},
		{"tool not found", NewToolNotFoundError("consultar_notas"), false},
		{"tool config invalid", NewToolConfigInvalidError(cause), false},
		{"tool execution failure", NewToolExecutionFailedError("sp_consultar_notas", cause), false},
		{"orchestration failure", NewOrchestrationFailedError("panic"), false},
		{"plain error", cause, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

// ==========================
// Cause Chain Tests
// ==========================

func TestStandardError_UnwrapReachesCause(t *testing.T) {
	sentinel := errors.New("ENTITY_CATALOG_UNAVAILABLE")
	cause := fmt.Errorf("%w: connection refused", sentinel)

	err := NewEntityCatalogUnavailableError("CURSO", cause)

	require.ErrorIs(t, err, sentinel, "package sentinels must stay matchable after classification")
	assert.Contains(t, err.Error(), "ENTITY_CATALOG_UNAVAILABLE")
}

func TestStandardError_NoCauseUnwrapsToNil(t *testing.T) {
	err := NewToolNotFoundError("consultar_notas")

	assert.Nil(t, errors.Unwrap(err))
	assert.Equal(t, ErrCodeToolNotFound, CodeOf(err))
}
