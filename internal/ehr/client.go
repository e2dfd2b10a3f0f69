// internal/ehr/client.go
package ehr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"yma-anonymizer/internal/common/config"
	cerrors "yma-anonymizer/internal/common/errors"
	chttp "yma-anonymizer/internal/common/http"
	"yma-anonymizer/internal/common/logger"
	"yma-anonymizer/internal/common/validation"
)

const visitHistoryPath = "/api/v2/patient-visit-histories"

// Client fetches patient visit histories from the Simplex EHR system.
// Transient failures (network, 5xx, 429) are retried with exponential backoff;
// auth and client errors are not. A 404 is translated to a zero-record result,
// never an error.
type Client struct {
	cfg        config.EHRConfig
	httpClient *chttp.Client
	logger     logger.Logger
}

func NewClient(cfg config.EHRConfig, httpClient *chttp.Client, log logger.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log.WithFields(map[string]interface{}{"component": "ehr-client"}),
	}
}

// FetchVisitHistory returns the visit history records for one patient.
func (c *Client) FetchVisitHistory(ctx context.Context, query VisitHistoryQuery) ([]VisitRecord, error) {
	if query.PatientID == "" {
		return nil, cerrors.NewInvalidRequestError("patientId must not be empty")
	}

	log := c.logger.WithFields(map[string]interface{}{
		"endpoint":  visitHistoryPath,
		"patientId": query.PatientID,
	})

	// At least one attempt regardless of the configured retry count.
	attempts := c.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(500*(1<<(attempt-2))) * time.Millisecond
			log.Warn("retrying EHR request", map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, cerrors.NewEHRTimeoutError(ctx.Err())
			}
		}

		records, err := c.fetchOnce(ctx, query, log)
		if err == nil {
			return records, nil
		}

		stdErr, ok := err.(*cerrors.StandardError)
		if !ok || !stdErr.Retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, query VisitHistoryQuery, log logger.Logger) ([]VisitRecord, error) {
	start := time.Now()

	endpoint := c.cfg.GetAPIBaseURL() + visitHistoryPath
	params := url.Values{}
	params.Set("permanent_mrn_no", query.PatientID)
	if query.VisitNo != "" {
		params.Set("permanent_visit_no", query.VisitNo)
	}
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, cerrors.NewEHRRejectedError(0, fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "yma-anonymizer/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) || ctx.Err() != nil {
			return nil, cerrors.NewEHRTimeoutError(err)
		}
		return nil, cerrors.NewEHRUnreachableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cerrors.NewEHRUnreachableError(err)
	}

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		log.Info("EHR request succeeded", map[string]interface{}{
			"duration_ms": time.Since(start).Milliseconds(),
			"status":      resp.StatusCode,
		})
		return c.parseResponse(body, log)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logErrorResponse(resp.StatusCode, body, log)
		return nil, cerrors.NewEHRUnauthorizedError(string(body))

	case resp.StatusCode == http.StatusNotFound:
		// No such patient is a legitimate empty result, not a failure.
		log.Info("no visit history found for patient", map[string]interface{}{
			"code":   string(cerrors.ErrCodeEHRNotFound),
			"status": resp.StatusCode,
		})
		return []VisitRecord{}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		c.logErrorResponse(resp.StatusCode, body, log)
		return nil, cerrors.NewEHRRateLimitedError(string(body))

	case resp.StatusCode >= http.StatusInternalServerError:
		c.logErrorResponse(resp.StatusCode, body, log)
		return nil, cerrors.NewEHRServerError(resp.StatusCode)

	default:
		c.logErrorResponse(resp.StatusCode, body, log)
		return nil, cerrors.NewEHRRejectedError(resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}

func (c *Client) parseResponse(body []byte, log logger.Logger) ([]VisitRecord, error) {
	var document interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, cerrors.NewEHRMalformedError(fmt.Sprintf("invalid JSON: %v", err))
	}

	result, err := validation.Validate(document, validation.VisitHistoryResponseSchema)
	if err != nil {
		return nil, cerrors.NewEHRMalformedError(err.Error())
	}
	if !result.Valid {
		return nil, cerrors.NewEHRMalformedError(result.FirstError())
	}

	var envelope VisitHistoryResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, cerrors.NewEHRMalformedError(fmt.Sprintf("invalid envelope: %v", err))
	}

	if !envelope.Status {
		// Simplex models "no records" as status=false rather than a 404.
		log.Info("EHR responded with status=false", map[string]interface{}{
			"message": envelope.Message,
		})
		return []VisitRecord{}, nil
	}

	return envelope.Data, nil
}

func (c *Client) logErrorResponse(statusCode int, body []byte, log logger.Logger) {
	log.Error("EHR error response", map[string]interface{}{
		"status": statusCode,
		"body":   string(body),
	})
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
