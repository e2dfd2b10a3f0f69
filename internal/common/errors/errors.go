// Package errors provides standardized error handling for the anonymization pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Request-level outcomes surfaced through the HTTP boundary.
const (
	ErrCodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrCodeUpstreamEHRError       ErrorCode = "UPSTREAM_EHR_ERROR"
	ErrCodeUpstreamInferenceError ErrorCode = "UPSTREAM_INFERENCE_ERROR"
	ErrCodePartialAnonymization   ErrorCode = "PARTIAL_ANONYMIZATION"
	ErrCodeRequestTimeout         ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// Call-level inference failures; retried inside the inference client and
// never surfaced individually.
const (
	ErrCodeInferenceUnreachable ErrorCode = "INFERENCE_UNREACHABLE"
	ErrCodeInferenceTimeout     ErrorCode = "INFERENCE_TIMEOUT"
	ErrCodeInferenceRateLimited ErrorCode = "INFERENCE_RATE_LIMITED"
	ErrCodeInferenceServerError ErrorCode = "INFERENCE_SERVER_ERROR"
	ErrCodeInferenceRejected    ErrorCode = "INFERENCE_REJECTED"
	ErrCodeInferenceMalformed   ErrorCode = "INFERENCE_MALFORMED_RESPONSE"
)

// Call-level EHR failures.
const (
	ErrCodeEHRNotFound     ErrorCode = "EHR_NOT_FOUND"
	ErrCodeEHRUnauthorized ErrorCode = "EHR_UNAUTHORIZED"
	ErrCodeEHRUnreachable  ErrorCode = "EHR_UNREACHABLE"
	ErrCodeEHRTimeout      ErrorCode = "EHR_TIMEOUT"
	ErrCodeEHRRateLimited  ErrorCode = "EHR_RATE_LIMITED"
	ErrCodeEHRServerError  ErrorCode = "EHR_SERVER_ERROR"
	ErrCodeEHRRejected     ErrorCode = "EHR_REJECTED"
	ErrCodeEHRMalformed    ErrorCode = "EHR_MALFORMED_RESPONSE"
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

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid anonymization request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamEHRError wraps an exhausted or non-retryable EHR failure.
func NewUpstreamEHRError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamEHRError,
		Message:   "EHR system request failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamInferenceError signals that every fragment of a request failed
// inference after retries.
func NewUpstreamInferenceError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamInferenceError,
		Message:   "Inference backend failed for all fragments",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestTimeoutError signals that the end-to-end request deadline elapsed.
func NewRequestTimeoutError(stage string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Message:   "Request deadline exceeded",
		Details:   fmt.Sprintf("deadline exceeded while %s", stage),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInferenceUnreachableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceUnreachable,
		Message:   "Inference backend unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInferenceTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceTimeout,
		Message:   "Inference call timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInferenceRateLimitedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceRateLimited,
		Message:   "Inference backend rate limit exceeded",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInferenceServerError(statusCode int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceServerError,
		Message:   "Inference backend returned a server error",
		Details:   fmt.Sprintf("status %d", statusCode),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInferenceRejectedError covers well-formed backend rejections; these
// indicate a request defect, not transience, and are never retried.
func NewInferenceRejectedError(statusCode int, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceRejected,
		Message:   "Inference backend rejected the request",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

func NewInferenceMalformedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceMalformed,
		Message:   "Inference response could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEHRUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEHRUnauthorized,
		Message:   "Unauthorized: invalid EHR API credentials",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEHRUnreachableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEHRUnreachable,
		Message:   "EHR system unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewEHRTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEHRTimeout,
		Message:   "EHR call timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewEHRRateLimitedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEHRRateLimited,
		Message:   "EHR rate limit exceeded",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewEHRServerError(statusCode int) *StandardError {
	return &StandardError{
		Code:      ErrCodeEHRServerError,
		Message:   "EHR system returned a server error",
		Details:   fmt.Sprintf("status %d", statusCode),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewEHRRejectedError(statusCode int, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEHRRejected,
		Message:   "EHR system rejected the request",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

func NewEHRMalformedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEHRMalformed,
		Message:   "EHR response could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable at the call level.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeInferenceUnreachable,
		ErrCodeInferenceTimeout,
		ErrCodeInferenceRateLimited,
		ErrCodeInferenceServerError,
		ErrCodeEHRUnreachable,
		ErrCodeEHRTimeout,
		ErrCodeEHRRateLimited,
		ErrCodeEHRServerError:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INFERENCE"):
		return "INFERENCE"
	case strings.Contains(codeStr, "EHR"):
		return "EHR"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}

// CodeOf extracts the ErrorCode from an error, or ErrCodeInternal for
// errors produced outside this package.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}
