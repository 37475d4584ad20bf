package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestObserveRequest_CountsByRouteAndStatus はルート・ステータス別にカウントされることを検証する。
func TestObserveRequest_CountsByRouteAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRequest("GET", "/api/expenses", 200, 10*time.Millisecond)
	c.ObserveRequest("GET", "/api/expenses", 200, 20*time.Millisecond)
	c.ObserveRequest("PUT", "/api/expenses/{id}", 403, time.Millisecond)

	mf := gather(t, reg, "despesas_http_requests_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		route := labelValue(m, "route")
		val := m.GetCounter().GetValue()
		switch route {
		case "/api/expenses":
			if val != 2 {
				t.Errorf("requests{route=/api/expenses} = %v, want 2", val)
			}
			if got := labelValue(m, "status_code"); got != "200" {
				t.Errorf("status_code = %q, want %q", got, "200")
			}
		case "/api/expenses/{id}":
			if val != 1 {
				t.Errorf("requests{route=/api/expenses/{id}} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected route label %q", route)
		}
	}

	latency := gather(t, reg, "despesas_http_request_duration_seconds")
	var samples uint64
	for _, m := range latency.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("latency sample count = %d, want 3", samples)
	}
}

// TestRecordLogin_CountsByResult はログイン結果別にカウントされることを検証する。
func TestRecordLogin_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(ResultSuccess)
	c.RecordLogin(ResultFailure)
	c.RecordLogin(ResultFailure)

	mf := gather(t, reg, "despesas_logins_total")
	for _, m := range mf.GetMetric() {
		want := map[string]float64{ResultSuccess: 1, ResultFailure: 2}[labelValue(m, "result")]
		if got := m.GetCounter().GetValue(); got != want {
			t.Errorf("logins{result=%s} = %v, want %v", labelValue(m, "result"), got, want)
		}
	}
}

// TestRecordUpload_CountsBytesOnlyOnSuccess は成功時のみバイト数が加算されることを検証する。
func TestRecordUpload_CountsBytesOnlyOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpload(ResultSuccess, 1024)
	c.RecordUpload(ResultRejected, 4096)

	bytes := gather(t, reg, "despesas_receipt_upload_bytes_total")
	if got := bytes.GetMetric()[0].GetCounter().GetValue(); got != 1024 {
		t.Errorf("upload_bytes_total = %v, want 1024", got)
	}
	uploads := gather(t, reg, "despesas_receipt_uploads_total")
	if len(uploads.GetMetric()) != 2 {
		t.Errorf("expected 2 result labels, got %d", len(uploads.GetMetric()))
	}
}

// TestSetFallbackActive_TogglesGauge はフォールバックゲージが切り替わることを検証する。
func TestSetFallbackActive_TogglesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetFallbackActive(true)
	if got := gather(t, reg, "despesas_storage_fallback_active").GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("fallback_active = %v, want 1", got)
	}
	c.SetFallbackActive(false)
	if got := gather(t, reg, "despesas_storage_fallback_active").GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("fallback_active = %v, want 0", got)
	}
}

// TestNewCollector_DoubleRegisterPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}
