// Package handlers provides the HTTP handlers of the onboarding service: the
// wizard pages, the theme endpoint and the operator integrity report.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/robcowart/onboard/internal/onboarding"
	"github.com/robcowart/onboard/internal/service"
	"go.uber.org/zap"
)

// User visible notification texts
const (
	MsgCompleted       = "Onboarding completed successfully!"
	MsgSessionNotFound = "Onboarding session not found. Please start again."
)

const firstStepPath = "/step/1"

// Wizard is the onboarding behaviour the handlers drive
type Wizard interface {
	Welcome(ctx context.Context) (*service.WelcomeStatus, error)
	GetStep(ctx context.Context, n int) (*service.StepView, error)
	SubmitStep(ctx context.Context, n int, form onboarding.Form) (*service.SubmitResult, error)
	Theme(ctx context.Context) (*service.Theme, error)
}

// OnboardingHandler serves the wizard pages
type OnboardingHandler struct {
	wizard   Wizard
	notifier Notifier
	logger   *zap.Logger
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(wizard Wizard, notifier Notifier, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		wizard:   wizard,
		notifier: notifier,
		logger:   logger,
	}
}

// Welcome returns the landing page state and any pending messages
func (h *OnboardingHandler) Welcome(c *gin.Context) {
	status, err := h.wizard.Welcome(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load onboarding status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load onboarding status"})
		return
	}

	theme, err := h.wizard.Theme(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load theme", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load theme"})
		return
	}

	messages := h.notifier.Pending(c)
	if messages == nil {
		messages = []Message{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"theme":    theme,
		"messages": messages,
	})
}

// GetStep returns the render context of a step. Unknown steps redirect to
// the first step.
func (h *OnboardingHandler) GetStep(c *gin.Context) {
	n, ok := stepParam(c)
	if !ok {
		c.Redirect(http.StatusFound, firstStepPath)
		return
	}

	view, err := h.wizard.GetStep(c.Request.Context(), n)
	if errors.Is(err, service.ErrStepOutOfRange) {
		c.Redirect(http.StatusFound, firstStepPath)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load step", zap.Int("step", n), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load step"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitStep applies a submitted step form and redirects to the next page
func (h *OnboardingHandler) SubmitStep(c *gin.Context) {
	n, ok := stepParam(c)
	if !ok {
		c.Redirect(http.StatusFound, firstStepPath)
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form submission"})
		return
	}

	result, err := h.wizard.SubmitStep(c.Request.Context(), n, c.Request.PostForm)
	switch {
	case errors.Is(err, service.ErrStepOutOfRange):
		c.Redirect(http.StatusFound, firstStepPath)
		return
	case errors.Is(err, service.ErrSessionNotFound):
		h.notifier.Notify(c, LevelError, MsgSessionNotFound)
		c.Redirect(http.StatusFound, "/")
		return
	case err != nil:
		h.logger.Error("Failed to submit step", zap.Int("step", n), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save step"})
		return
	}

	if len(result.Warnings) > 0 {
		fields := make([]string, len(result.Warnings))
		for i, w := range result.Warnings {
			fields[i] = w.Field
		}
		h.notifier.Notify(c, LevelWarning, "Some values were not accepted and defaults were kept: "+strings.Join(fields, ", "))
	}

	if result.Completed {
		h.notifier.Notify(c, LevelSuccess, MsgCompleted)
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.Redirect(http.StatusFound, "/step/"+strconv.Itoa(result.NextStep))
}

// GetTheme returns the branding applied to every page
func (h *OnboardingHandler) GetTheme(c *gin.Context) {
	theme, err := h.wizard.Theme(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load theme", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load theme"})
		return
	}

	c.JSON(http.StatusOK, theme)
}

// Health reports liveness
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func stepParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("n"))
	return n, err == nil
}
