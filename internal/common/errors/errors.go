// Package errors provides the error taxonomy shared by the search pipeline and
// its workflow job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidQuery          ErrorCode = "INVALID_QUERY"
	ErrCodeNoResults             ErrorCode = "NO_RESULTS"
	ErrCodeRateLimitExceeded     ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeSourceUnavailable     ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeCacheBackendError     ErrorCode = "CACHE_BACKEND_ERROR"
	ErrCodeRateLimitBackendError ErrorCode = "RATE_LIMIT_BACKEND_ERROR"
	ErrCodeAggregationFailed     ErrorCode = "AGGREGATION_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidQueryError(details string) *StandardError {
	return newError(ErrCodeInvalidQuery, "Invalid search query", details, false)
}

func NewNoResultsError(query string) *StandardError {
	return newError(ErrCodeNoResults, "No book found at any source", fmt.Sprintf("query: %s", query), false)
}

func NewRateLimitExceededError(remaining int, resetAt time.Time) *StandardError {
	e := newError(ErrCodeRateLimitExceeded, "Rate limit exceeded", "", false)
	e.Metadata = map[string]interface{}{
		"remaining": remaining,
		"reset":     resetAt.UTC().Format(time.RFC3339),
	}
	return e
}

func NewSourceUnavailableError(source string, err error) *StandardError {
	return newError(ErrCodeSourceUnavailable, fmt.Sprintf("Source '%s' unavailable", source), err.Error(), true)
}

func NewCacheBackendError(op string, err error) *StandardError {
	return newError(ErrCodeCacheBackendError, fmt.Sprintf("Cache %s failed", op), err.Error(), true)
}

func NewRateLimitBackendError(err error) *StandardError {
	return newError(ErrCodeRateLimitBackendError, "Rate limit backend error", err.Error(), true)
}

func NewAggregationFailedError(err error) *StandardError {
	return newError(ErrCodeAggregationFailed, "Aggregation failed", err.Error(), true)
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSourceUnavailable, ErrCodeAggregationFailed:
		return 3
	case ErrCodeCacheBackendError, ErrCodeRateLimitBackendError:
		return 1
	default:
		return 0 // business outcomes: no retry
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "RATE_LIMIT"):
		return "ADMISSION"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "SOURCE") || strings.Contains(codeStr, "AGGREGATION"):
		return "SCRAPING"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "NO_RESULTS"):
		return "USER"
	default:
		return "OTHER"
	}
}

// UserMessage is the end-user text for the outcomes that reach a person.
// Everything else gets the generic message.
func UserMessage(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidQuery:
		return "최소 1개 이상의 검색어를 입력해주세요 (제목, 저자, 출판사)"
	case ErrCodeNoResults:
		return "검색 결과가 없습니다"
	case ErrCodeRateLimitExceeded:
		return "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."
	default:
		return "검색 중 오류가 발생했습니다"
	}
}

// AsStandardError unwraps err to a StandardError, wrapping unknown errors as
// non-retryable internal errors.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}
