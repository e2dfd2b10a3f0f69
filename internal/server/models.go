// internal/server/models.go
package server

import (
	"yma-anonymizer/internal/ehr"
	"yma-anonymizer/internal/orchestrator"
)

// AnonymizeResponse is the POST /anonymize success body.
type AnonymizeResponse struct {
	Anonymized string            `json:"anonymized"`
	Meta       orchestrator.Meta `json:"meta"`
}

// VisitHistoryResponse is the GET /ehr/patient-visit-histories success body.
type VisitHistoryResponse struct {
	Data []ehr.VisitRecord `json:"data"`
	Meta orchestrator.Meta `json:"meta"`
}
