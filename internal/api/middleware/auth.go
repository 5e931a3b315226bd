// Package middleware provides HTTP middleware for the onboarding server:
// operator token checks, request logging, CORS handling and per-client rate
// limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/robcowart/onboard/internal/auth"
	"github.com/robcowart/onboard/internal/config"
)

// OperatorKey is the gin context key holding the authenticated operator name
const OperatorKey = "operator"

// OperatorAuthMiddleware requires a valid operator bearer token
func OperatorAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	secret := cfg.JWTSecret()
	issuer := cfg.JWT.Issuer

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := auth.ValidateToken(parts[1], secret, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(OperatorKey, claims.Operator)
		c.Next()
	}
}
