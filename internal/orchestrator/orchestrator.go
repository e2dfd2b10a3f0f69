// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"yma-anonymizer/internal/common/config"
	cerrors "yma-anonymizer/internal/common/errors"
	"yma-anonymizer/internal/common/logger"
	"yma-anonymizer/internal/common/metrics"
	"yma-anonymizer/internal/common/observability"
	"yma-anonymizer/internal/ehr"
	"yma-anonymizer/internal/normalize"
)

// InferenceClient is the inference surface the orchestrator drives.
type InferenceClient interface {
	Anonymize(ctx context.Context, text string) (string, error)
}

// EHRClient resolves a patient reference into visit history records.
type EHRClient interface {
	FetchVisitHistory(ctx context.Context, query ehr.VisitHistoryQuery) ([]ehr.VisitRecord, error)
}

// Orchestrator drives one anonymization request through the pipeline:
// resolve (PatientRef only), extract, anonymize with bounded concurrent
// fan-out, reassemble. Partial success is tolerated: failed fragments are
// redacted so long as at least one fragment succeeded and the end-to-end
// deadline did not expire during fan-out; an expired deadline discards any
// partial results and fails the request.
type Orchestrator struct {
	inference  InferenceClient
	ehrClient  EHRClient
	normalizer *normalize.Normalizer
	cfg        config.AnonymizationConfig
	logger     logger.Logger
	obs        *observability.Observability
}

func New(
	inference InferenceClient,
	ehrClient EHRClient,
	normalizer *normalize.Normalizer,
	cfg config.AnonymizationConfig,
	log logger.Logger,
	obs *observability.Observability,
) *Orchestrator {
	return &Orchestrator{
		inference:  inference,
		ehrClient:  ehrClient,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     log,
		obs:        obs,
	}
}

// AnonymizeText handles a raw-text request. The text becomes a single
// synthesized fragment, bypassing extraction.
func (o *Orchestrator) AnonymizeText(ctx context.Context, correlationID, text string) (*TextResult, error) {
	start := time.Now()
	log := logger.WithCorrelationID(o.logger, correlationID)

	log.Debug("anonymization request received", map[string]interface{}{
		"stage":       string(StageReceived),
		"requestKind": string(KindRawText),
	})

	if strings.TrimSpace(text) == "" {
		return nil, o.fail(ctx, log, KindRawText, cerrors.NewInvalidRequestError("data must not be empty"))
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GetRequestTimeout())
	defer cancel()

	fragments := []normalize.Fragment{
		{ID: "text", SourcePath: "text", Content: text},
	}

	anonymized, failures := o.anonymizeFragments(ctx, log, fragments)
	if ctx.Err() == context.DeadlineExceeded {
		return nil, o.fail(ctx, log, KindRawText, cerrors.NewRequestTimeoutError(string(StageAnonymizing)))
	}
	if len(anonymized) == 0 {
		return nil, o.fail(ctx, log, KindRawText, o.allFragmentsFailed(failures))
	}

	result := &TextResult{
		Anonymized: anonymized["text"].Content,
		Meta: Meta{
			RequestKind:     string(KindRawText),
			CorrelationID:   correlationID,
			FragmentCount:   len(fragments),
			AnonymizedCount: len(anonymized),
			ElapsedSeconds:  elapsedSeconds(start),
		},
	}

	o.complete(ctx, log, KindRawText, start, result.Meta)
	return result, nil
}

// AnonymizePatientHistory handles a patient-reference request: fetch the
// visit history, anonymize every allow-listed text field, and rebuild the
// records in their original shape.
func (o *Orchestrator) AnonymizePatientHistory(ctx context.Context, correlationID string, query ehr.VisitHistoryQuery) (*RecordsResult, error) {
	start := time.Now()
	log := logger.WithCorrelationID(o.logger, correlationID)

	log.Debug("anonymization request received", map[string]interface{}{
		"stage":       string(StageReceived),
		"requestKind": string(KindPatientRef),
	})

	if strings.TrimSpace(query.PatientID) == "" {
		return nil, o.fail(ctx, log, KindPatientRef, cerrors.NewInvalidRequestError("patientId must not be empty"))
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GetRequestTimeout())
	defer cancel()

	// Resolving
	records, err := o.ehrClient.FetchVisitHistory(ctx, query)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, o.fail(ctx, log, KindPatientRef, cerrors.NewRequestTimeoutError(string(StageResolving)))
		}
		if cerrors.CodeOf(err) == cerrors.ErrCodeInvalidRequest {
			return nil, o.fail(ctx, log, KindPatientRef, err)
		}
		return nil, o.fail(ctx, log, KindPatientRef, cerrors.NewUpstreamEHRError(err))
	}

	meta := Meta{
		RequestKind:   string(KindPatientRef),
		CorrelationID: correlationID,
	}

	// Zero records is a completed empty result, never a failure.
	if len(records) == 0 {
		meta.ElapsedSeconds = elapsedSeconds(start)
		result := &RecordsResult{Records: []ehr.VisitRecord{}, Meta: meta}
		o.complete(ctx, log, KindPatientRef, start, meta)
		return result, nil
	}

	// Extracting
	log.Debug("extracting text fragments", map[string]interface{}{
		"stage":       string(StageExtracting),
		"recordCount": len(records),
	})
	fragments := o.normalizer.Extract(records)
	meta.FragmentCount = len(fragments)

	if len(fragments) == 0 {
		// Nothing on the allow-list carries text; records pass through as-is.
		meta.ElapsedSeconds = elapsedSeconds(start)
		result := &RecordsResult{Records: records, Meta: meta}
		o.complete(ctx, log, KindPatientRef, start, meta)
		return result, nil
	}

	// Anonymizing
	anonymized, failures := o.anonymizeFragments(ctx, log, fragments)
	if ctx.Err() == context.DeadlineExceeded {
		// Partial results are discarded: a response assembled after the
		// deadline is late no matter how much of it succeeded.
		return nil, o.fail(ctx, log, KindPatientRef, cerrors.NewRequestTimeoutError(string(StageAnonymizing)))
	}
	if len(anonymized) == 0 {
		return nil, o.fail(ctx, log, KindPatientRef, o.allFragmentsFailed(failures))
	}
	meta.AnonymizedCount = len(anonymized)

	// Reassembling
	log.Debug("reassembling records", map[string]interface{}{
		"stage":           string(StageReassembling),
		"anonymizedCount": len(anonymized),
	})
	rebuilt := o.normalizer.Reassemble(records, anonymized)

	meta.ElapsedSeconds = elapsedSeconds(start)
	result := &RecordsResult{Records: rebuilt, Meta: meta}
	o.complete(ctx, log, KindPatientRef, start, meta)
	return result, nil
}

// anonymizeFragments fans fragments out to the inference client, bounded by
// the configured maximum in-flight count, and joins before returning.
// Results are keyed by fragment ID, so completion order never affects
// reassembly. A failed fragment is absent from the result map and its error
// is collected so the caller can classify a total failure.
func (o *Orchestrator) anonymizeFragments(ctx context.Context, log logger.Logger, fragments []normalize.Fragment) (map[string]normalize.AnonymizedFragment, []error) {
	sem := make(chan struct{}, o.cfg.MaxConcurrentInference)
	results := make(map[string]normalize.AnonymizedFragment, len(fragments))
	var failures []error

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, frag := range fragments {
		wg.Add(1)
		go func(frag normalize.Fragment) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			content, err := o.inference.Anonymize(ctx, frag.Content)
			if err != nil {
				log.Warn("fragment anonymization failed", map[string]interface{}{
					"fragmentId": frag.ID,
					"error":      err.Error(),
				})
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return
			}

			mu.Lock()
			results[frag.ID] = normalize.AnonymizedFragment{ID: frag.ID, Content: content}
			mu.Unlock()
		}(frag)
	}

	wg.Wait()

	redacted := len(fragments) - len(results)
	metrics.FragmentsAnonymized.WithLabelValues("anonymized").Add(float64(len(results)))
	if redacted > 0 {
		metrics.FragmentsAnonymized.WithLabelValues("redacted").Add(float64(redacted))
		log.Warn("partial anonymization", map[string]interface{}{
			"code":            string(cerrors.ErrCodePartialAnonymization),
			"fragmentCount":   len(fragments),
			"anonymizedCount": len(results),
			"redactedCount":   redacted,
		})
	}
	if o.obs != nil {
		o.obs.RecordFragments(ctx, "anonymized", int64(len(results)))
		if redacted > 0 {
			o.obs.RecordFragments(ctx, "redacted", int64(redacted))
		}
	}

	return results, failures
}

// allFragmentsFailed picks the request-level failure when no fragment
// survived the anonymizing stage. Input rejections keep their kind so a
// caller fault never surfaces as an upstream failure; anything else is an
// upstream inference failure.
func (o *Orchestrator) allFragmentsFailed(failures []error) error {
	if len(failures) > 0 {
		callerFault := true
		for _, err := range failures {
			if cerrors.CodeOf(err) != cerrors.ErrCodeInvalidRequest {
				callerFault = false
				break
			}
		}
		if callerFault {
			return failures[0]
		}
	}
	return cerrors.NewUpstreamInferenceError(fmt.Errorf("all fragments failed after retries"))
}

func (o *Orchestrator) complete(ctx context.Context, log logger.Logger, kind RequestKind, start time.Time, meta Meta) {
	duration := time.Since(start)
	metrics.RequestsCompleted.WithLabelValues(string(kind)).Inc()
	metrics.RequestDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
	if o.obs != nil {
		o.obs.RecordRequest(ctx, string(kind), "completed")
		o.obs.RecordRequestDuration(ctx, duration, string(kind))
	}
	log.Info("anonymization completed", map[string]interface{}{
		"stage":           string(StageCompleted),
		"requestKind":     meta.RequestKind,
		"fragmentCount":   meta.FragmentCount,
		"anonymizedCount": meta.AnonymizedCount,
		"elapsed_s":       meta.ElapsedSeconds,
	})
}

func (o *Orchestrator) fail(ctx context.Context, log logger.Logger, kind RequestKind, err error) error {
	code := cerrors.CodeOf(err)
	metrics.RequestsFailed.WithLabelValues(string(kind), string(code)).Inc()
	if o.obs != nil {
		o.obs.RecordRequest(ctx, string(kind), "failed")
	}
	log.Error("anonymization failed", map[string]interface{}{
		"requestKind": string(kind),
		"errorCode":   string(code),
		"error":       err.Error(),
	})
	return err
}

func elapsedSeconds(start time.Time) float64 {
	return math.Round(time.Since(start).Seconds()*100) / 100
}
