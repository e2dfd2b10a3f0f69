package errors

import (
	"net/http"
	"time"
)

// ErrorResponse is the wire shape of every failure response. The code string
// is stable so clients can switch on it.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler maps pipeline errors to HTTP responses with standardized logging.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleRequestError normalizes any error to a StandardError, logs it, and
// returns the HTTP status plus response body to write. Fragment-level detail
// never crosses this boundary; callers only see the request-level taxonomy.
func (h *ErrorHandler) HandleRequestError(err error) (int, ErrorResponse) {
	stdErr := h.normalizeError(err)

	h.logger.Error("Request failed", map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})

	return HTTPStatus(stdErr.Code), ErrorResponse{
		Error: ErrorBody{
			Code:    string(stdErr.Code),
			Message: stdErr.Message,
		},
	}
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps a request-level error code to its HTTP status. Upstream
// failures are 502 because they are not the caller's fault; the end-to-end
// deadline maps to 504.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeUpstreamEHRError, ErrCodeUpstreamInferenceError:
		return http.StatusBadGateway
	case ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
