package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robcowart/onboard/internal/api/middleware"
	"github.com/robcowart/onboard/internal/auth"
	"github.com/robcowart/onboard/internal/config"
	"github.com/robcowart/onboard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockIntegrityReporter is a mock implementation of IntegrityReporter for testing
type MockIntegrityReporter struct {
	mock.Mock
}

func (m *MockIntegrityReporter) Integrity(ctx context.Context) (*service.IntegrityReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IntegrityReport), args.Error(1)
}

func TestAdminHandler_GetIntegrity(t *testing.T) {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:     "admin-test-secret",
			Expiration: time.Hour,
			Issuer:     "onboard",
		},
	}

	token, err := auth.GenerateOperatorToken("ops", cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	require.NoError(t, err)

	newRouter := func(reporter IntegrityReporter, logger *zap.Logger) http.Handler {
		handler := NewAdminHandler(reporter, logger)
		router := setupTestRouter()
		router.GET("/api/v1/admin/integrity", middleware.OperatorAuthMiddleware(cfg), handler.GetIntegrity)
		return router
	}

	request := func(router http.Handler, bearer string) (int, []byte) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/admin/integrity", nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code, w.Body.Bytes()
	}

	t.Run("Healthy report", func(t *testing.T) {
		reporter := new(MockIntegrityReporter)
		reporter.On("Integrity", mock.Anything).Return(&service.IntegrityReport{
			ConfigID:       "cfg-1",
			StorageBackend: "local",
			Credentials:    map[string]string{"email_password": service.CredentialOK},
			Issues:         []string{},
		}, nil)
		core, recorded := observer.New(zapcore.InfoLevel)

		code, body := request(newRouter(reporter, zap.New(core)), token)

		assert.Equal(t, http.StatusOK, code)

		var resp struct {
			Healthy bool                    `json:"healthy"`
			Report  service.IntegrityReport `json:"report"`
		}
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.True(t, resp.Healthy)
		assert.Equal(t, "cfg-1", resp.Report.ConfigID)
		assert.Equal(t, service.CredentialOK, resp.Report.Credentials["email_password"])

		entries := recorded.FilterMessage("Integrity report requested").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "ops", entries[0].ContextMap()["operator"])
	})

	t.Run("Report with issues is unhealthy", func(t *testing.T) {
		reporter := new(MockIntegrityReporter)
		reporter.On("Integrity", mock.Anything).Return(&service.IntegrityReport{
			Credentials: map[string]string{"s3_secret_key": service.CredentialCorrupt},
			Issues:      []string{"s3_secret_key cannot be decrypted"},
		}, nil)

		code, body := request(newRouter(reporter, zap.NewNop()), token)

		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, string(body), `"healthy":false`)
	})

	t.Run("Missing token is rejected before the service", func(t *testing.T) {
		reporter := new(MockIntegrityReporter)

		code, _ := request(newRouter(reporter, zap.NewNop()), "")

		assert.Equal(t, http.StatusUnauthorized, code)
		reporter.AssertNotCalled(t, "Integrity", mock.Anything)
	})

	t.Run("Token signed with another secret is rejected", func(t *testing.T) {
		forged, err := auth.GenerateOperatorToken("ops", "other-secret", cfg.JWT.Issuer, time.Hour)
		require.NoError(t, err)
		reporter := new(MockIntegrityReporter)

		code, _ := request(newRouter(reporter, zap.NewNop()), forged)

		assert.Equal(t, http.StatusUnauthorized, code)
		reporter.AssertNotCalled(t, "Integrity", mock.Anything)
	})

	t.Run("Service failure returns 500", func(t *testing.T) {
		reporter := new(MockIntegrityReporter)
		reporter.On("Integrity", mock.Anything).Return(nil, errors.New("db gone"))

		code, body := request(newRouter(reporter, zap.NewNop()), token)

		assert.Equal(t, http.StatusInternalServerError, code)
		assert.NotContains(t, string(body), "db gone")
	})
}
