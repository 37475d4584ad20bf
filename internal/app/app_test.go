package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.IdentityProvider != "local" {
		t.Errorf("IdentityProvider = %q, want local", cfg.IdentityProvider)
	}

	// ログレベルが設定値で再設定されていること
	slog.Default().Debug("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("BASE_URL", "")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "with password", in: "postgres://despesas:s3cret@db:5432/despesas?sslmode=disable"},
		{name: "invalid", in: "::not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskDatabaseURL(tt.in)
			if strings.Contains(got, "s3cret") {
				t.Errorf("maskDatabaseURL(%q) = %q, password must be hidden", tt.in, got)
			}
		})
	}
}
