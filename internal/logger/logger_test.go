package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	entry := decode(t, &buf)
	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_IncludesLevelField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Warn("warning test")

	entry := decode(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output below level, got %s", buf.String())
	}
}

func TestSetup_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("login attempt",
		slog.String("email", "admin@example.com"),
		slog.String("password", "hunter2"),
		slog.String("Authorization", "Bearer abc"),
		slog.String("session_id", "deadbeef"),
	)

	entry := decode(t, &buf)
	if entry["email"] != "admin@example.com" {
		t.Errorf("email = %q, want %q", entry["email"], "admin@example.com")
	}
	for _, key := range []string{"password", "Authorization", "session_id"} {
		if entry[key] != redacted {
			t.Errorf("%s = %q, want %q", key, entry[key], redacted)
		}
	}
}

func TestSetup_MultipleAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("expense created",
		slog.Int64("user_id", 2),
		slog.String("expense_id", "6f1c"),
		slog.String("contract_number", "0001"),
		slog.Int("http_status", 201),
	)

	entry := decode(t, &buf)
	if entry["user_id"] != float64(2) {
		t.Errorf("user_id = %v, want %v", entry["user_id"], 2)
	}
	if entry["expense_id"] != "6f1c" {
		t.Errorf("expense_id = %q, want %q", entry["expense_id"], "6f1c")
	}
	if entry["contract_number"] != "0001" {
		t.Errorf("contract_number = %q, want %q", entry["contract_number"], "0001")
	}
	if entry["http_status"] != float64(201) {
		t.Errorf("http_status = %v, want %v", entry["http_status"], 201)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "verbose", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf, slog.LevelInfo)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	entry := decode(t, &buf)
	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}
