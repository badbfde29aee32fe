package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"admission/internal/admin/models"
	"admission/internal/jwttoken"
	"admission/pkg/requestcontext"
)

// TokenValidator validates bearer tokens; satisfied by jwttoken.Service.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// AdminLoader resolves an authenticated admin identity to its record.
type AdminLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error)
}

type contextKeyAdmin struct{}

// ContextKeyAdmin is exported for tests that seed an admin directly.
var ContextKeyAdmin = contextKeyAdmin{}

// GetAdmin retrieves the authenticated admin from the context; nil when the
// request did not pass through RequireAdmin.
func GetAdmin(ctx context.Context) *models.Admin {
	admin, ok := ctx.Value(ContextKeyAdmin).(*models.Admin)
	if !ok {
		return nil
	}
	return admin
}

// WithAdmin injects an admin into a context. Test helper.
func WithAdmin(ctx context.Context, admin *models.Admin) context.Context {
	return context.WithValue(ctx, ContextKeyAdmin, admin)
}

// RequireAdmin authenticates the bearer token, loads the admin record and
// rejects inactive accounts. The full record lands in the request context so
// handlers can evaluate role and capability checks without another lookup.
func RequireAdmin(validator TokenValidator, admins AdminLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			adminID, err := uuid.Parse(claims.AdminID)
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			admin, err := admins.FindByID(ctx, adminID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unknown admin",
					"admin_id", claims.AdminID,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			if !admin.IsActive {
				writeUnauthorized(w, "Admin account is inactive")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAdmin(ctx, admin)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
