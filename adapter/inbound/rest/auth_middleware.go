package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware guards the reference store API with bearer tokens
type AuthMiddleware struct {
	authService  inbound.AuthService
	logger       outbound.Logger
	publicRoutes []string
}

func NewAuthMiddleware(authService inbound.AuthService, logger outbound.Logger, publicRoutes ...string) *AuthMiddleware {
	return &AuthMiddleware{
		authService:  authService,
		logger:       logger,
		publicRoutes: publicRoutes,
	}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isPublicRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			m.unauthorized(w, "missing token")
			return
		}

		identity, err := m.authService.ValidateToken(token)
		if err != nil {
			m.unauthorized(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireReviewer lets approvers and admins through
func (m *AuthMiddleware) RequireReviewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			m.forbidden(w, "user not found in context")
			return
		}

		if !identity.Role.CanReview() {
			m.forbidden(w, model.ErrForbidden.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func IdentityFromContext(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(UserContextKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

func (m *AuthMiddleware) isPublicRoute(path string) bool {
	for _, route := range m.publicRoutes {
		if strings.HasPrefix(path, route) {
			return true
		}
	}
	return false
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	m.logger.Warn("Unauthorized access", "message", message)
	writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

func (m *AuthMiddleware) forbidden(w http.ResponseWriter, message string) {
	m.logger.Warn("Forbidden access", "message", message)
	writeError(w, http.StatusForbidden, "forbidden", message)
}
