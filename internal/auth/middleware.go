package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/obs"
)

var errUnauthorized = common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, nil)

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Verifier *Verifier
}

// RequireAuth enforces that a valid token is present before executing the
// next handler. The subject and role are stored on the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Verifier == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth not configured", nil)
			return
		}
		token := bearerToken(r)
		if token == "" {
			common.JSONError(w, errUnauthorized.HTTPStatus, errUnauthorized.Code, errUnauthorized.Message, nil)
			return
		}
		claims, err := m.Verifier.Verify(token)
		if err != nil {
			var appErr *common.AppError
			if !errors.As(err, &appErr) {
				appErr = errUnauthorized
			}
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
			return
		}
		ctx := common.WithCaller(r.Context(), common.Caller{UserID: claims.UserID, Role: claims.Role})
		obs.TagCaller(ctx, claims.UserID, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, common.Role(r.Context())) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
