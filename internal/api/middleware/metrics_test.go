package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()

	r := chi.NewRouter()
	r.Use(Metrics(reg))
	r.Get("/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for range 2 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events/abc", nil))
	}

	families, err := reg.Gather()
	assert.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			assert.Equal(t, "/events/{id}", labels["path"])
			assert.Equal(t, "418", labels["status"])
			assert.Equal(t, float64(2), m.GetCounter().GetValue())
			found = true
		}
	}
	assert.True(t, found)

	n, err := testutil.GatherAndCount(reg, "http_request_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStatusWriter_KeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	w.WriteHeader(http.StatusBadGateway)
	w.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusBadGateway, w.status)
}

func TestStatusWriter_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	assert.Same(t, rec, w.Unwrap())
}
