package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TestMetricsMiddleware_UsesRoutePattern ensures request metrics are labelled
// by the chi route pattern instead of the raw URL path.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	h := NewMux(&mockService{})

	req := httptest.NewRequest(http.MethodDelete, "/counters/some-unique-id", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := mrr.Body.Bytes()
	if !bytes.Contains(body, []byte(`path="/counters/{id}"`)) {
		t.Fatal("expected metrics labelled with the route pattern /counters/{id}")
	}
	if bytes.Contains(body, []byte("some-unique-id")) {
		t.Fatal("raw path leaked into metric labels")
	}
}
