// internal/inference/client.go
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"yma-anonymizer/internal/common/config"
	cerrors "yma-anonymizer/internal/common/errors"
	chttp "yma-anonymizer/internal/common/http"
	"yma-anonymizer/internal/common/logger"
	"yma-anonymizer/internal/common/metrics"
)

const chatCompletionsPath = "/chat/completions"

// Client sends text to the confidential-computing-hosted model and returns
// anonymized text. Transient failures (network, timeout, 429, 5xx) are
// retried with exponential backoff; rejections and malformed responses are
// contract defects and are not.
type Client struct {
	cfg        config.InferenceConfig
	httpClient *chttp.Client
	logger     logger.Logger
}

func NewClient(cfg config.InferenceConfig, httpClient *chttp.Client, log logger.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log.WithFields(map[string]interface{}{"component": "inference-client"}),
	}
}

// Anonymize strips identifying information from text. Input above the
// configured maximum is rejected rather than truncated: a silent cut could
// drop identifying context at an unsafe boundary.
func (c *Client) Anonymize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", cerrors.NewInvalidRequestError("text must not be empty")
	}
	if len(text) > c.cfg.MaxInputChars {
		return "", cerrors.NewInvalidRequestError(
			fmt.Sprintf("text length %d exceeds maximum of %d characters", len(text), c.cfg.MaxInputChars))
	}

	log := c.logger.WithFields(map[string]interface{}{
		"model":      c.cfg.Model,
		"prompt_len": len(text),
	})

	metrics.InferenceInFlight.Inc()
	defer metrics.InferenceInFlight.Dec()

	// At least one attempt regardless of the configured retry count.
	attempts := c.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.InferenceRetries.Inc()
			backoff := time.Duration(500*(1<<(attempt-2))) * time.Millisecond
			log.Warn("retrying inference call", map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", cerrors.NewInferenceTimeoutError(ctx.Err())
			}
		}

		anonymized, err := c.completeOnce(ctx, text, log)
		if err == nil {
			return anonymized, nil
		}

		stdErr, ok := err.(*cerrors.StandardError)
		if !ok || !stdErr.Retryable {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

func (c *Client) completeOnce(ctx context.Context, text string, log logger.Logger) (string, error) {
	start := time.Now()

	reqBody := ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: AnonymizePrompt},
			{Role: "user", Content: text},
		},
		Temperature: c.cfg.Temperature,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", cerrors.NewInferenceMalformedError(fmt.Sprintf("failed to marshal request: %v", err))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + chatCompletionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return "", cerrors.NewInferenceRejectedError(0, fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	// Required by the instruct-mode serving layer inside the enclave.
	req.Header.Set("mode", "instruct")
	req.Header.Set("instruction_template", "Alpaca")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) || ctx.Err() != nil {
			return "", cerrors.NewInferenceTimeoutError(err)
		}
		return "", cerrors.NewInferenceUnreachableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", cerrors.NewInferenceUnreachableError(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below

	case resp.StatusCode == http.StatusTooManyRequests:
		return "", cerrors.NewInferenceRateLimitedError(string(body))

	case resp.StatusCode >= http.StatusInternalServerError:
		return "", cerrors.NewInferenceServerError(resp.StatusCode)

	default:
		return "", cerrors.NewInferenceRejectedError(resp.StatusCode, string(body))
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", cerrors.NewInferenceMalformedError(fmt.Sprintf("invalid JSON: %v", err))
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", cerrors.NewInferenceMalformedError("no anonymized content in response")
	}

	c.logCompletion(completion, start, log)
	return completion.Choices[0].Message.Content, nil
}

func (c *Client) logCompletion(completion ChatCompletionResponse, start time.Time, log logger.Logger) {
	fields := map[string]interface{}{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"model":      completion.Model,
	}
	if completion.Usage != nil {
		fields["prompt_tokens"] = completion.Usage.PromptTokens
		fields["completion_tokens"] = completion.Usage.CompletionTokens
		fields["total_tokens"] = completion.Usage.TotalTokens
	} else {
		log.Warn("no usage data in response", fields)
		return
	}
	log.Info("chat completion completed", fields)
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
