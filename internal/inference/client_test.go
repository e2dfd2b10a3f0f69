package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yma-anonymizer/internal/common/config"
	cerrors "yma-anonymizer/internal/common/errors"
	chttp "yma-anonymizer/internal/common/http"
	"yma-anonymizer/internal/common/logger"
)

// ==========================
// Test Helpers
// ==========================

func testConfig(baseURL string) config.InferenceConfig {
	return config.InferenceConfig{
		BaseURL:       baseURL,
		APIKey:        "test-api-key",
		Model:         "test-model",
		Temperature:   0.7,
		Timeout:       5000,
		MaxRetries:    3,
		MaxInputChars: 24000,
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(testConfig(baseURL), chttp.NewClient(5*time.Second), logger.NewTestLogger(t))
}

func completionBody(content string) string {
	resp := ChatCompletionResponse{Model: "test-model"}
	resp.Choices = []struct {
		Message ChatMessage `json:"message"`
	}{
		{Message: ChatMessage{Role: "assistant", Content: content}},
	}
	resp.Usage = &TokenUsage{PromptTokens: 120, CompletionTokens: 48, TotalTokens: 168}
	body, _ := json.Marshal(resp)
	return string(body)
}

// ==========================
// Success Path
// ==========================

func TestClient_Anonymize_Success(t *testing.T) {
	var gotRequest ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "instruct", r.Header.Get("mode"))
		assert.Equal(t, "Alpaca", r.Header.Get("instruction_template"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("Patient [REDACTED], DOB [REDACTED]")))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	result, err := client.Anonymize(context.Background(), "Patient John Doe, DOB 1980-01-01")
	require.NoError(t, err)
	assert.Equal(t, "Patient [REDACTED], DOB [REDACTED]", result)

	// System prompt travels with every call; user text is untouched.
	require.Len(t, gotRequest.Messages, 2)
	assert.Equal(t, "system", gotRequest.Messages[0].Role)
	assert.Equal(t, AnonymizePrompt, gotRequest.Messages[0].Content)
	assert.Equal(t, "Patient John Doe, DOB 1980-01-01", gotRequest.Messages[1].Content)
	assert.Equal(t, "test-model", gotRequest.Model)
}

// ==========================
// Input Validation
// ==========================

func TestClient_Anonymize_RejectsEmptyText(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Anonymize(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInvalidRequest, cerrors.CodeOf(err))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestClient_Anonymize_RejectsOverlongText(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.MaxInputChars = 10
	client := NewClient(cfg, chttp.NewClient(time.Second), logger.NewNoOpLogger())

	_, err := client.Anonymize(context.Background(), "this text is longer than ten characters")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInvalidRequest, cerrors.CodeOf(err))
}

// ==========================
// Retry Behavior
// ==========================

func TestClient_Anonymize_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionBody("anonymized")))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	result, err := client.Anonymize(context.Background(), "some clinical note")
	require.NoError(t, err)
	assert.Equal(t, "anonymized", result)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Anonymize_ExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	client := NewClient(cfg, chttp.NewClient(time.Second), logger.NewNoOpLogger())

	_, err := client.Anonymize(context.Background(), "some clinical note")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInferenceServerError, cerrors.CodeOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Anonymize_DoesNotRetryRejection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid input"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Anonymize(context.Background(), "some clinical note")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInferenceRejected, cerrors.CodeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Anonymize_DoesNotRetryMalformedResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Anonymize(context.Background(), "some clinical note")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInferenceMalformed, cerrors.CodeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Anonymize_EmptyChoicesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"test-model","choices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Anonymize(context.Background(), "some clinical note")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInferenceMalformed, cerrors.CodeOf(err))
}

func TestClient_Anonymize_ZeroRetriesStillAttemptsOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(completionBody("anonymized note")))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 0
	client := NewClient(cfg, chttp.NewClient(time.Second), logger.NewNoOpLogger())

	result, err := client.Anonymize(context.Background(), "some clinical note")
	require.NoError(t, err)
	assert.Equal(t, "anonymized note", result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Anonymize_UnreachableBackend(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.MaxRetries = 1
	client := NewClient(cfg, chttp.NewClient(time.Second), logger.NewNoOpLogger())

	_, err := client.Anonymize(context.Background(), "some clinical note")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInferenceUnreachable, cerrors.CodeOf(err))
}
