package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/robcowart/onboard/internal/api/middleware"
	"github.com/robcowart/onboard/internal/service"
	"go.uber.org/zap"
)

// IntegrityReporter produces the operator credential report
type IntegrityReporter interface {
	Integrity(ctx context.Context) (*service.IntegrityReport, error)
}

// AdminHandler serves operator endpoints
type AdminHandler struct {
	reporter IntegrityReporter
	logger   *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reporter IntegrityReporter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		reporter: reporter,
		logger:   logger,
	}
}

// GetIntegrity reports whether stored credentials still decrypt and whether
// the storage settings agree with the selected backend
func (h *AdminHandler) GetIntegrity(c *gin.Context) {
	report, err := h.reporter.Integrity(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build integrity report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build integrity report"})
		return
	}

	h.logger.Info("Integrity report requested",
		zap.String("operator", c.GetString(middleware.OperatorKey)),
		zap.Bool("healthy", report.Healthy()),
	)

	c.JSON(http.StatusOK, gin.H{
		"healthy": report.Healthy(),
		"report":  report,
	})
}
