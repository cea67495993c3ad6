package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/metrics", Handler())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `sqlchat_http_requests_total{method="GET",path="/items/{id}",status="202"}`) {
		t.Fatalf("expected route-pattern label in metrics output:\n%s", body)
	}
}

func TestMiddlewareCollapsesUnmatchedPaths(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	for _, p := range []string{"/wp-admin/a1", "/wp-admin/b2", "/random/c3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("Expected status 404 for %s, got %d", p, rr.Code)
		}
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	if after-before != 3 {
		t.Errorf("Expected 3 unmatched requests, got %v", after-before)
	}

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, raw := range []string{"/wp-admin", "/random"} {
		if strings.Contains(rr.Body.String(), raw) {
			t.Errorf("Expected no %s label in metrics output", raw)
		}
	}
}

func TestMiddlewarePreservesFlusher(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Fatal("expected response writer to implement http.Flusher")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))
}

func TestObserversDoNotPanic(t *testing.T) {
	ObserveQuestion("ok", 150*time.Millisecond)
	ObserveQuestion("", time.Second)
	IncrementToolCall("sql_db_query")
	IncrementHandleConstruction("embedded")
	IncrementHandleCacheHit()
	SetActiveSessions(-1)
}
