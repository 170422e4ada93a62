package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/golang-jwt/jwt/v5"

	mw "github.com/edvin/billing/internal/api/middleware"
)

const (
	testOrgID    = "0b8f3c1e-5d7a-4c2b-9e1f-3a6d8b2c4e5f"
	otherOrgID   = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	testOrderNSU = "org_" + testOrgID + "_1775037600"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// withOrg injects the claims of a user acting for orgID.
func withOrg(r *http.Request, orgID string) *http.Request {
	claims := &mw.Claims{OrgID: orgID, RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	return r.WithContext(mw.WithClaims(r.Context(), claims))
}
