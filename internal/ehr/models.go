// internal/ehr/models.go
package ehr

// VisitRecord is one patient-visit-history document as returned by Simplex.
// The record is treated as opaque: which fields carry free text is decided by
// the configured allow-list, not by inspecting the record itself.
type VisitRecord map[string]interface{}

// VisitHistoryResponse is the Simplex v2 patient-visit-history envelope.
type VisitHistoryResponse struct {
	Status  bool          `json:"status"`
	Message string        `json:"message"`
	Data    []VisitRecord `json:"data"`
}

// VisitHistoryQuery identifies the patient whose history is fetched.
// PatientID is the permanent MRN; VisitNo narrows to one visit when set.
type VisitHistoryQuery struct {
	PatientID string
	VisitNo   string
}
