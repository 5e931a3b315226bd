package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerMiddleware(t *testing.T) {
	t.Run("Logs request fields", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)

		router := setupTestRouter()
		router.Use(LoggerMiddleware(zap.New(core)))
		router.GET("/step/:n", func(c *gin.Context) {
			time.Sleep(5 * time.Millisecond)
			c.JSON(http.StatusOK, gin.H{"step": c.Param("n")})
		})

		req, _ := http.NewRequest(http.MethodGet, "/step/2?resume=1", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		req.Header.Set("User-Agent", "Mozilla/5.0 (Test Browser)")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "HTTP request", logs[0].Message)
		assert.Equal(t, zapcore.InfoLevel, logs[0].Level)

		fields := logs[0].ContextMap()
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/step/2", fields["path"])
		assert.Equal(t, "resume=1", fields["query"])
		assert.Equal(t, int64(200), fields["status"])
		assert.Equal(t, "192.168.1.100", fields["ip"])
		assert.Equal(t, "Mozilla/5.0 (Test Browser)", fields["user_agent"])

		latency, ok := fields["latency"].(time.Duration)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, latency, 5*time.Millisecond)
	})

	t.Run("Level follows status", func(t *testing.T) {
		tests := []struct {
			status int
			level  zapcore.Level
		}{
			{http.StatusOK, zapcore.InfoLevel},
			{http.StatusFound, zapcore.InfoLevel},
			{http.StatusUnauthorized, zapcore.WarnLevel},
			{http.StatusTooManyRequests, zapcore.WarnLevel},
			{http.StatusInternalServerError, zapcore.ErrorLevel},
		}

		for _, tt := range tests {
			t.Run(http.StatusText(tt.status), func(t *testing.T) {
				core, recorded := observer.New(zapcore.InfoLevel)

				router := setupTestRouter()
				router.Use(LoggerMiddleware(zap.New(core)))
				router.GET("/test", func(c *gin.Context) {
					c.Status(tt.status)
				})

				req, _ := http.NewRequest(http.MethodGet, "/test", nil)
				router.ServeHTTP(httptest.NewRecorder(), req)

				logs := recorded.All()
				require.Len(t, logs, 1)
				assert.Equal(t, tt.level, logs[0].Level)
				assert.Equal(t, int64(tt.status), logs[0].ContextMap()["status"])
			})
		}
	})

	t.Run("Logs form posts without the body", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)

		router := setupTestRouter()
		router.Use(LoggerMiddleware(zap.New(core)))
		router.POST("/step/2", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/step/3")
		})

		body := strings.NewReader("email_host_password=hunter2")
		req, _ := http.NewRequest(http.MethodPost, "/step/2", body)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)

		logs := recorded.All()
		require.Len(t, logs, 1)
		for _, v := range logs[0].ContextMap() {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, "hunter2")
			}
		}
	})

	t.Run("Logs unknown routes", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)

		router := setupTestRouter()
		router.Use(LoggerMiddleware(zap.New(core)))

		req, _ := http.NewRequest(http.MethodGet, "/notfound", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		logs := recorded.All()
		require.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "/notfound", fields["path"])
		assert.Equal(t, int64(404), fields["status"])
	})
}
