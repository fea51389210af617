// Package errors provides standardized error handling for the chat engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeIntentRoutingFailed  ErrorCode = "INTENT_ROUTING_FAILED"
	ErrCodeExtractionFailed     ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout    ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed   ErrorCode = "LLM_SYNTHESIS_FAILED"
	ErrCodeLLMResponseMalformed ErrorCode = "LLM_RESPONSE_MALFORMED"

	ErrCodeEntityCatalogUnavailable ErrorCode = "ENTITY_CATALOG_UNAVAILABLE"

	ErrCodeToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	ErrCodeToolConfigInvalid   ErrorCode = "TOOL_CONFIG_INVALID"
	ErrCodeToolExecutionFailed ErrorCode = "TOOL_EXECUTION_FAILED"
	ErrCodeToolExecutionTimeout ErrorCode = "TOOL_EXECUTION_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeRetrievalFailed          ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeStateStoreUnavailable    ErrorCode = "STATE_STORE_UNAVAILABLE"

	ErrCodeOrchestrationFailed ErrorCode = "ORCHESTRATION_FAILED"
)

// StandardError represents a structured application error. Cause keeps the
// underlying error reachable through errors.Is/As so package sentinels still
// match after classification.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewExtractionFailedError marks an LLM extraction call that threw or
// returned non-conforming output. Never fatal to the turn.
func NewExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "LLM parameter extraction failed",
		Details:   err.Error(),
		Retryable: false,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM transport timeout error.
func NewLLMTimeoutError(operation string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM call timed out",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMSynthesisFailedError creates a retryable synthesis error.
func NewLLMSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMSynthesisFailed,
		Message:   "LLM answer synthesis failed",
		Details:   err.Error(),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntityCatalogUnavailableError creates a retryable catalog lookup error.
func NewEntityCatalogUnavailableError(entityType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityCatalogUnavailable,
		Message:   "Entity catalog lookup failed",
		Details:   fmt.Sprintf("entityType: %s, error: %s", entityType, err.Error()),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolNotFoundError creates a non-retryable registry error.
func NewToolNotFoundError(toolName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeToolNotFound,
		Message:   "Tool not declared in context configuration",
		Details:   fmt.Sprintf("toolName: %s", toolName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolConfigInvalidError creates a non-retryable configuration error.
func NewToolConfigInvalidError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeToolConfigInvalid,
		Message:   "Tool configuration document failed schema validation",
		Details:   cause.Error(),
		Retryable: false,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolExecutionFailedError creates a terminal execution error; the
// conversation state is cleared by the orchestrator when it sees this code.
func NewToolExecutionFailedError(procedure string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeToolExecutionFailed,
		Message:   "Stored procedure execution failed",
		Details:   fmt.Sprintf("procedure: %s, error: %s", procedure, err.Error()),
		Retryable: false,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalFailedError creates a retryable document retrieval error.
func NewRetrievalFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalFailed,
		Message:   "Document passage retrieval failed",
		Details:   err.Error(),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateStoreUnavailableError marks a cache failure. Callers degrade to an
// empty conversation state instead of propagating this to the user.
func NewStateStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStateStoreUnavailable,
		Message:   "Conversation state store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrchestrationFailedError wraps anything that escaped the inner layers.
func NewOrchestrationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrchestrationFailed,
		Message:   "Unrecoverable turn orchestration failure",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Helpers
// ==========================

// IsRetryable reports whether err is, or wraps, a retryable StandardError.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or empty when err is not standard.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
