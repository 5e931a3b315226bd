package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robcowart/onboard/internal/config"
	"github.com/robcowart/onboard/internal/crypto"
	"github.com/robcowart/onboard/internal/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRouter_OperatorRoutes(t *testing.T) {
	request := func(cfg *config.Config, logger *zap.Logger) int {
		// Requests below never reach the store
		svc := service.NewOnboardingService(nil, crypto.NewCodec("router-test"), cfg, logger)
		router := NewRouter(cfg, svc, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/integrity", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("Development secret leaves the operator API unmounted", func(t *testing.T) {
		core, recorded := observer.New(zapcore.ErrorLevel)

		code := request(config.Default(), zap.New(core))

		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, 1, recorded.FilterMessageSnippet("Operator API disabled").Len())
	})

	t.Run("Deployment secret mounts the operator API", func(t *testing.T) {
		cfg := config.Default()
		cfg.JWT.Secret = "deployment-jwt-secret"

		code := request(cfg, zap.NewNop())

		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestNewRouter_Health(t *testing.T) {
	cfg := config.Default()
	svc := service.NewOnboardingService(nil, crypto.NewCodec("router-test"), cfg, zap.NewNop())
	router := NewRouter(cfg, svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
