package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/app"
	"github.com/ternarybob/overseer/internal/metrics"
)

func newMiddlewareServer(t *testing.T, register func(mux *http.ServeMux)) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	register(mux)
	s := &Server{app: &app.App{Logger: arbor.NewLogger()}, router: mux}
	return s.Handler()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	h := newMiddlewareServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/ping", func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	id := rec.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, seen)
}

func TestMiddleware_KeepsCallerRequestID(t *testing.T) {
	h := newMiddlewareServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/ping", func(w http.ResponseWriter, r *http.Request) {})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-42", rec.Header().Get(RequestIDHeader))

	// Oversized IDs are replaced
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(RequestIDHeader, string(make([]byte, maxRequestIDLen+1)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestMiddleware_RecordsRequestsByRoutePattern(t *testing.T) {
	h := newMiddlewareServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/widgets/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/widgets/missing" {
				w.WriteHeader(http.StatusNotFound)
			}
		})
	})

	okBefore := counterValue(t, metrics.HTTPRequests.WithLabelValues("/api/widgets/", http.MethodGet, "200"))
	missingBefore := counterValue(t, metrics.HTTPRequests.WithLabelValues("/api/widgets/", http.MethodGet, "404"))

	for _, path := range []string{"/api/widgets/a", "/api/widgets/b", "/api/widgets/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, okBefore+2, counterValue(t, metrics.HTTPRequests.WithLabelValues("/api/widgets/", http.MethodGet, "200")))
	assert.Equal(t, missingBefore+1, counterValue(t, metrics.HTTPRequests.WithLabelValues("/api/widgets/", http.MethodGet, "404")))
}

func TestMiddleware_RecoversPanicWithRequestID(t *testing.T) {
	h := newMiddlewareServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/boom", func(w http.ResponseWriter, r *http.Request) {
			panic("nil pointer")
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/boom", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "req-7")
}

func TestMiddleware_Preflight(t *testing.T) {
	called := false
	h := newMiddlewareServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/ping", func(w http.ResponseWriter, r *http.Request) { called = true })
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RequestIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
}
