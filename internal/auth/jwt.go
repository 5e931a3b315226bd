// Package auth issues and validates the bearer tokens that guard the
// operator endpoints of the onboarding service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeAdmin grants access to the operator endpoints
const ScopeAdmin = "onboarding:admin"

// ErrMissingScope is returned for a valid token that lacks the required scope
var ErrMissingScope = errors.New("token lacks required scope")

// Claims represents operator JWT claims
type Claims struct {
	Operator string `json:"operator"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// GenerateOperatorToken signs a token for the named operator
func GenerateOperatorToken(operator, secret, issuer string, expiration time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}

	now := time.Now()
	claims := &Claims{
		Operator: operator,
		Scope:    ScopeAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates an operator token and returns its claims. An empty
// issuer skips the issuer check.
func ValidateToken(tokenString, secret, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Scope != ScopeAdmin {
		return nil, ErrMissingScope
	}

	return claims, nil
}
