// internal/server/server.go
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yma-anonymizer/internal/common/logger"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(orch Orchestrator, log logger.Logger, environment string) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	controller := NewController(orch, log)

	router.GET("/healthz", controller.Healthz)
	router.POST("/anonymize", controller.Anonymize)
	router.GET("/ehr/patient-visit-histories", controller.PatientVisitHistories)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
