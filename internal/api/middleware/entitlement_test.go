package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/edvin/billing/internal/core"
)

type checkerFunc func(ctx context.Context, orgID string) error

func (f checkerFunc) Check(ctx context.Context, orgID string) error { return f(ctx, orgID) }

func withTestClaims(r *http.Request) *http.Request {
	claims := &Claims{OrgID: testOrg, RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	return r.WithContext(WithClaims(r.Context(), claims))
}

func TestRequireActiveAccess_ReadsPass(t *testing.T) {
	called := false
	checker := checkerFunc(func(context.Context, string) error {
		called = true
		return &core.LapsedError{}
	})

	rec := httptest.NewRecorder()
	RequireActiveAccess(checker)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/usage", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
}

func TestRequireActiveAccess_LapsedBlocksWrites(t *testing.T) {
	deadline := time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)
	checker := checkerFunc(func(_ context.Context, orgID string) error {
		assert.Equal(t, testOrg, orgID)
		return &core.LapsedError{OrganizationID: orgID, Deadline: &deadline}
	})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequireActiveAccess(checker)(okHandler()).ServeHTTP(rec, withTestClaims(httptest.NewRequest(method, "/usage/seats", nil)))

			assert.Equal(t, http.StatusPaymentRequired, rec.Code)
			body := errorBody(t, rec)
			assert.Equal(t, "renew", body["action"])
			assert.Contains(t, body["error"], "2026-03-31")
		})
	}
}

func TestRequireActiveAccess_ActiveWritesPass(t *testing.T) {
	checker := checkerFunc(func(context.Context, string) error { return nil })

	rec := httptest.NewRecorder()
	RequireActiveAccess(checker)(okHandler()).ServeHTTP(rec, withTestClaims(httptest.NewRequest(http.MethodPost, "/usage/seats", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireActiveAccess_NoClaims(t *testing.T) {
	checker := checkerFunc(func(context.Context, string) error { return nil })

	rec := httptest.NewRecorder()
	RequireActiveAccess(checker)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/usage/seats", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
