// Package middleware provides HTTP middleware for the platform API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aidgrid/platform/internal/errors"
	"github.com/aidgrid/platform/pkg/logger"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// Claims represents the JWT claims issued by the user service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and stores the caller identity in
// the request context.
type AuthMiddleware struct {
	secret    []byte
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates an authentication middleware. Paths in skipPaths
// bypass token validation entirely.
func NewAuthMiddleware(secret []byte, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{secret: secret, logger: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(parts[1])
		if err != nil {
			m.logger.WithError(err).Warn("token validation failed")
			respondError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		if claims.Role != "" {
			ctx = context.WithValue(ctx, roleKey, claims.Role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	return claims, nil
}

func respondError(w http.ResponseWriter, err error) {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		svcErr = errors.Internal("Authentication failed", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": svcErr.Message,
		"code":  svcErr.Code,
	})
}

// GetUserID extracts the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUserRole extracts the authenticated role from the context.
func GetUserRole(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentity returns a context carrying the given identity. Used by tests
// and the websocket upgrader.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}
