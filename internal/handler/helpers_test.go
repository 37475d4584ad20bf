package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/despesas/internal/middleware"
	"github.com/hitoshi/despesas/internal/model"
)

var (
	adminPrincipal = model.Principal{UserID: 1, Role: model.RoleAdmin}
	userPrincipal  = model.Principal{UserID: 2, Role: model.RoleUser}
)

// withPrincipal はテスト用にリクエストコンテキストにPrincipalを注入するヘルパー。
func withPrincipal(r *http.Request, p model.Principal) *http.Request {
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), p))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// jsonRequest はJSONボディ付きのリクエストを生成するヘルパー。
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseErrorBody はレスポンスボディから統一エラーフォーマットをパースするヘルパー。
func parseErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// decodeBody はレスポンスボディをdstにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, w.Body.String())
	}
}

func hasFieldError(body middleware.ErrorResponseBody, field string) bool {
	for _, fe := range body.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func containsStr(s, substr string) bool {
	return strings.Contains(s, substr)
}
