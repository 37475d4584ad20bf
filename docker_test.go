package despesas_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestDockerfileMultiStageBuild(t *testing.T) {
	content := readFile(t, "Dockerfile")

	// マルチステージビルドの確認: ビルドステージと実行ステージが存在すること
	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}

	// 最終ステージは軽量イメージであること
	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") && !strings.Contains(lastFrom, "alpine") && !strings.Contains(lastFrom, "scratch") {
		t.Errorf("final stage should use a minimal base image (distroless/alpine/scratch), got: %s", lastFrom)
	}
}

func TestDockerfileBinaries(t *testing.T) {
	content := readFile(t, "Dockerfile")

	for _, want := range []string{"./cmd/despesas", "./cmd/adduser", "ENTRYPOINT"} {
		if !strings.Contains(content, want) {
			t.Errorf("Dockerfile should contain %q", want)
		}
	}
	// distroless にはcurlがないため healthcheck サブコマンドを使う
	if !strings.Contains(content, `"healthcheck"`) {
		t.Error("Dockerfile HEALTHCHECK should use the healthcheck subcommand")
	}
}

func TestDockerComposeServices(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	for _, svc := range []string{"api:", "cleanup:", "migrate:", "db:", "minio:"} {
		if !strings.Contains(content, svc) {
			t.Errorf("docker-compose.yml should contain service %q", svc)
		}
	}
	if !strings.Contains(content, "postgres:") {
		t.Error("docker-compose.yml should use PostgreSQL image")
	}
	if !strings.Contains(content, `["cleanup"]`) {
		t.Error("cleanup service should run the cleanup subcommand")
	}
}

func TestDockerComposeNetworks(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	// 内部ネットワークの定義（internal: true）
	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network (internal: true) for egress restriction")
	}
	if !strings.Contains(content, "external:") {
		t.Error("docker-compose.yml should define an external network for api egress")
	}
}
