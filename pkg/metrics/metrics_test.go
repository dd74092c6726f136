package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Enrollment(OutcomeAccepted)
	m.Enrollment(OutcomeAccepted)
	m.Verification(OutcomeReplay)
	m.ProofVerified("verify", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.enrollments.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues(OutcomeReplay)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.verifications.WithLabelValues(OutcomeAccepted)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Enrollment(OutcomeAccepted)
	m.Verification(OutcomeError)
	m.ProofVerified("enroll", time.Second)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"1", "2", "3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("/users/{id}", http.MethodGet, "404")))

	srv := httptest.NewServer(r)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "zkekyc_http_requests_total"))
}
