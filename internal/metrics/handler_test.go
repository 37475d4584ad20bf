package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHandler_ServesMetrics はスクレイプでメトリクスが返ることを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveRequest("GET", "/api/stats", 200, 5*time.Millisecond)
	c.SetFallbackActive(true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, name := range []string{
		"despesas_http_requests_total",
		"despesas_http_request_duration_seconds",
		"despesas_storage_fallback_active 1",
	} {
		if !strings.Contains(bodyStr, name) {
			t.Errorf("response should contain %s", name)
		}
	}
}

// TestHandler_ContentType はPrometheusテキスト形式で返ることを検証する。
func TestHandler_ContentType(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	Handler(reg).ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain prefix", ct)
	}
}
