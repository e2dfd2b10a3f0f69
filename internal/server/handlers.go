// internal/server/handlers.go
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cerrors "yma-anonymizer/internal/common/errors"
	"yma-anonymizer/internal/common/logger"
	"yma-anonymizer/internal/common/validation"
	"yma-anonymizer/internal/ehr"
	"yma-anonymizer/internal/orchestrator"
)

// Orchestrator is the subset of orchestrator operations the boundary needs.
type Orchestrator interface {
	AnonymizeText(ctx context.Context, correlationID, text string) (*orchestrator.TextResult, error)
	AnonymizePatientHistory(ctx context.Context, correlationID string, query ehr.VisitHistoryQuery) (*orchestrator.RecordsResult, error)
}

// Controller handles the HTTP requests for the anonymization API. It depends
// on the orchestrator to perform the actual pipeline work.
type Controller struct {
	orch       Orchestrator
	errHandler *cerrors.ErrorHandler
	logger     logger.Logger
}

func NewController(orch Orchestrator, log logger.Logger) *Controller {
	return &Controller{
		orch:       orch,
		errHandler: cerrors.NewErrorHandler(log),
		logger:     log,
	}
}

// Healthz reports liveness only.
func (c *Controller) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Anonymize is the handler for POST /anonymize.
func (c *Controller) Anonymize(ctx *gin.Context) {
	correlationID := uuid.NewString()

	var raw map[string]interface{}
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		c.writeError(ctx, cerrors.NewInvalidRequestError("invalid JSON body: "+err.Error()))
		return
	}

	result, err := validation.Validate(raw, validation.AnonymizeRequestSchema)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	if !result.Valid {
		c.writeError(ctx, cerrors.NewInvalidRequestError(result.FirstError()))
		return
	}

	text, ok := raw["data"].(string)
	if !ok {
		text, _ = raw["text"].(string)
	}

	response, err := c.orch.AnonymizeText(ctx.Request.Context(), correlationID, text)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, AnonymizeResponse{
		Anonymized: response.Anonymized,
		Meta:       response.Meta,
	})
}

// PatientVisitHistories is the handler for GET /ehr/patient-visit-histories.
// The legacy Simplex parameter names are accepted as aliases.
func (c *Controller) PatientVisitHistories(ctx *gin.Context) {
	correlationID := uuid.NewString()

	patientID := ctx.Query("patientId")
	if patientID == "" {
		patientID = ctx.Query("permanent_mrn_no")
	}
	visitNo := ctx.Query("visitNo")
	if visitNo == "" {
		visitNo = ctx.Query("permanent_visit_no")
	}

	if patientID == "" {
		c.writeError(ctx, cerrors.NewInvalidRequestError("patientId query parameter is required"))
		return
	}

	response, err := c.orch.AnonymizePatientHistory(ctx.Request.Context(), correlationID, ehr.VisitHistoryQuery{
		PatientID: patientID,
		VisitNo:   visitNo,
	})
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, VisitHistoryResponse{
		Data: response.Records,
		Meta: response.Meta,
	})
}

func (c *Controller) writeError(ctx *gin.Context, err error) {
	status, body := c.errHandler.HandleRequestError(err)
	ctx.JSON(status, body)
}
