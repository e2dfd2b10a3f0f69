// internal/orchestrator/models.go
package orchestrator

import (
	"yma-anonymizer/internal/ehr"
)

// RequestKind distinguishes the two request variants.
type RequestKind string

const (
	KindRawText    RequestKind = "raw_text"
	KindPatientRef RequestKind = "patient_ref"
)

// Stage names the state machine positions, used for logging and for naming
// the stage a deadline expired in.
type Stage string

const (
	StageReceived     Stage = "received"
	StageResolving    Stage = "resolving"
	StageExtracting   Stage = "extracting"
	StageAnonymizing  Stage = "anonymizing"
	StageReassembling Stage = "reassembling"
	StageCompleted    Stage = "completed"
)

// Meta describes the outcome of one request. AnonymizedCount below
// FragmentCount means partial anonymization: the missing fragments were
// redacted, and callers can detect it here without an error status.
type Meta struct {
	RequestKind     string  `json:"requestKind"`
	CorrelationID   string  `json:"correlationId"`
	FragmentCount   int     `json:"fragmentCount"`
	AnonymizedCount int     `json:"anonymizedCount"`
	ElapsedSeconds  float64 `json:"elapsedSeconds"`
}

// TextResult is the outcome of a raw-text request.
type TextResult struct {
	Anonymized string `json:"anonymized"`
	Meta       Meta   `json:"meta"`
}

// RecordsResult is the outcome of a patient-reference request: the visit
// records rebuilt in their original shape with text fields anonymized.
type RecordsResult struct {
	Records []ehr.VisitRecord `json:"data"`
	Meta    Meta              `json:"meta"`
}
