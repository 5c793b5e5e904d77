package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

// TestMetricsMiddleware_EmitsRequestCounters verifies that wrapping a handler
// with MetricsMiddleware results in request metrics being exposed via the
// Prometheus /metrics handler.
func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := scrape(t); !bytes.Contains(body, []byte("tokenizerd_http_requests_total")) {
		t.Fatalf("expected to find tokenizerd_http_requests_total in metrics")
	}
}

// TestMux_LabelsByRoutePattern ensures requests through the mux are labeled by
// the chi route pattern.
func TestMux_LabelsByRoutePattern(t *testing.T) {
	h := NewMux(newMockService())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tokenizers/list", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/tokenizers/list", http.MethodGet, "200"))
	if got < 1 {
		t.Fatalf("expected /tokenizers/list to be counted, got %v", got)
	}
}

func TestCountRecordsTokenizerMetrics(t *testing.T) {
	before := testutil.ToFloat64(tokenCountTotal.WithLabelValues("o200k_base", "metrics-probe"))
	w := postCount(NewMux(newMockService()), `{"text":"one two three","model":"metrics-probe"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if got := testutil.ToFloat64(tokenCountTotal.WithLabelValues("o200k_base", "metrics-probe")); got != before+3 {
		t.Fatalf("token_count_total=%v, want %v", got, before+3)
	}
	if got := testutil.ToFloat64(tokenizerCountTotal.WithLabelValues("o200k_base", "metrics-probe")); got < 1 {
		t.Fatalf("tokenizer_count_total=%v", got)
	}

	lw := httptest.NewRecorder()
	NewMux(newMockService()).ServeHTTP(lw, httptest.NewRequest(http.MethodGet, "/tokenizers/list", nil))
	if got := testutil.ToFloat64(activeTokenizers); got != 2 {
		t.Fatalf("active_tokenizers=%v", got)
	}
	body := scrape(t)
	for _, name := range []string{"tokenizer_latency_seconds", "tokenizer_service_info"} {
		if !bytes.Contains(body, []byte(name)) {
			t.Fatalf("metrics missing %s", name)
		}
	}
}

func TestSetServiceInfo(t *testing.T) {
	defer SetServiceInfo("tokenizerd", "dev")
	SetServiceInfo("", "1.2.3")
	if serviceName != "tokenizerd" || serviceVersion != "1.2.3" {
		t.Fatalf("name=%q version=%q", serviceName, serviceVersion)
	}
	if got := testutil.ToFloat64(serviceInfo.WithLabelValues("1.2.3", "Universal Tokenizer Service")); got != 1 {
		t.Fatalf("service info gauge=%v", got)
	}
}
