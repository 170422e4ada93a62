package middleware

import (
	"context"
	"net/http"

	"github.com/edvin/billing/internal/api/response"
)

// AccessChecker reports whether an organization may make changes.
// *core.EntitlementService satisfies this interface.
type AccessChecker interface {
	Check(ctx context.Context, orgID string) error
}

// RequireActiveAccess blocks mutating requests from organizations whose
// access has lapsed. Reads always pass.
func RequireActiveAccess(checker AccessChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			claims := GetClaims(r.Context())
			if claims == nil {
				response.WriteError(w, http.StatusUnauthorized, "missing claims")
				return
			}

			if err := checker.Check(r.Context(), claims.OrgID); err != nil {
				response.WriteServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
