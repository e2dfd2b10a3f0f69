package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodeUpstreamEHRError, http.StatusBadGateway},
		{ErrCodeUpstreamInferenceError, http.StatusBadGateway},
		{ErrCodeRequestTimeout, http.StatusGatewayTimeout},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.code))
		})
	}
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeInferenceUnreachable))
	assert.True(t, IsRetryableErrorCode(ErrCodeInferenceTimeout))
	assert.True(t, IsRetryableErrorCode(ErrCodeInferenceServerError))
	assert.True(t, IsRetryableErrorCode(ErrCodeEHRServerError))
	assert.True(t, IsRetryableErrorCode(ErrCodeEHRRateLimited))

	assert.False(t, IsRetryableErrorCode(ErrCodeInferenceRejected))
	assert.False(t, IsRetryableErrorCode(ErrCodeEHRUnauthorized))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidRequest))
	assert.False(t, IsRetryableErrorCode(ErrCodeEHRMalformed))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidRequest, CodeOf(NewInvalidRequestError("bad input")))
	assert.Equal(t, ErrCodeEHRUnauthorized, CodeOf(NewEHRUnauthorizedError("token expired")))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain error")))
}

type captureLogger struct {
	fields map[string]interface{}
}

func (c *captureLogger) Error(msg string, fields map[string]interface{}) {
	c.fields = fields
}

func TestHandleRequestError_StandardError(t *testing.T) {
	log := &captureLogger{}
	handler := NewErrorHandler(log)

	status, body := handler.HandleRequestError(NewUpstreamInferenceError(errors.New("all fragments failed")))

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, string(ErrCodeUpstreamInferenceError), body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)

	require.NotNil(t, log.fields)
	assert.Equal(t, string(ErrCodeUpstreamInferenceError), log.fields["errorCode"])
}

func TestHandleRequestError_PlainErrorBecomesInternal(t *testing.T) {
	handler := NewErrorHandler(&captureLogger{})

	status, body := handler.HandleRequestError(errors.New("something unexpected"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, string(ErrCodeInternal), body.Error.Code)
	// Internal details stay out of the response body.
	assert.NotContains(t, body.Error.Message, "something unexpected")
}
