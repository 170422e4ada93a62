package handler

import (
	"net/http"

	mw "github.com/edvin/billing/internal/api/middleware"
	"github.com/edvin/billing/internal/api/response"
)

// callerOrg returns the organization of the authenticated caller or writes
// a 401.
func callerOrg(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := mw.GetClaims(r.Context())
	if claims == nil || claims.OrgID == "" {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return "", false
	}
	return claims.OrgID, true
}
