package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims identifies the operator a CLI-issued session token was
// minted for (§9 "Operator authentication" — this domain has no consumer
// identity provider, so caoctl issues its own tokens instead of validating
// a third-party JWKS).
type OperatorClaims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

// OperatorAuth accepts either the static bootstrap API key or a JWT minted
// by `caoctl auth issue-token`.
type OperatorAuth struct {
	logger *slog.Logger
	apiKey string
	jwtKey []byte
}

func NewOperatorAuth(logger *slog.Logger, apiKey, jwtKey string) *OperatorAuth {
	return &OperatorAuth{logger: logger, apiKey: apiKey, jwtKey: []byte(jwtKey)}
}

// Middleware rejects any request lacking a valid bearer credential.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			a.unauthorized(w, "invalid authorization header format")
			return
		}
		token := parts[1]

		if a.apiKey != "" && token == a.apiKey {
			ctx := context.WithValue(r.Context(), operatorKey, "api-key")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		operator, err := a.validateToken(token)
		if err != nil {
			a.logger.Warn("operator token validation failed",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			a.unauthorized(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *OperatorAuth) validateToken(tokenString string) (string, error) {
	claims := &OperatorClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse operator token: %w", err)
	}
	if !parsed.Valid || claims.Operator == "" {
		return "", fmt.Errorf("invalid operator token")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return "", fmt.Errorf("operator token expired")
	}
	return claims.Operator, nil
}

func (a *OperatorAuth) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

type contextKeyOperator string

const operatorKey contextKeyOperator = "operator"

// GetOperator extracts the authenticated operator's identifier from context.
func GetOperator(ctx context.Context) string {
	if op, ok := ctx.Value(operatorKey).(string); ok {
		return op
	}
	return ""
}

// IssueToken mints a signed operator session token, used by `caoctl auth
// issue-token`.
func IssueToken(jwtKey, operator string, ttl time.Duration) (string, error) {
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Operator: operator,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtKey))
}
