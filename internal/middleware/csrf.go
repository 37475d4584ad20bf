package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/despesas/internal/model"
)

const (
	// csrfCookieName はダッシュボードのJavaScriptから読むためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	defaultCSRFMaxAge = 86400
)

// CSRFConfig はダブルサブミットCookieの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	// MaxAge はCookieの有効期間（秒）。セッションCookieと揃える。0の場合は24時間。
	MaxAge int
}

func (c CSRFConfig) maxAge() int {
	if c.MaxAge <= 0 {
		return defaultCSRFMaxAge
	}
	return c.MaxAge
}

func newCSRFInvalidError() *model.APIError {
	return &model.APIError{
		Code:     "CSRF_INVALID",
		Message:  "Token CSRF inválido",
		Category: "auth",
		Action:   "Recarregue a página e tente novamente.",
	}
}

// NewCSRFMiddleware はダブルサブミット方式のCSRF検証ミドルウェアを返す。
// GET/HEAD/OPTIONSは検証せずCookieを発行し、それ以外はCookieとヘッダーの一致を必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				ensureCSRFCookie(w, r, config)
				next.ServeHTTP(w, r)
				return
			}

			if reason := checkCSRFToken(r); reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, newCSRFInvalidError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkCSRFToken は検証に失敗した理由を返す。成功時は空文字列。
func checkCSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing cookie token"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "token mismatch"
	}
	return ""
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラーを返す。
// 既存のCookieがあればそのトークンを返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(csrfCookieName); err == nil {
			token = cookie.Value
		}
		if token == "" {
			var err error
			if token, err = generateCSRFToken(); err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
			setCSRFCookie(w, token, config)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) {
	if _, err := r.Cookie(csrfCookieName); err == nil {
		return
	}
	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return
	}
	setCSRFCookie(w, token, config)
}

func setCSRFCookie(w http.ResponseWriter, token string, config CSRFConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   config.maxAge(),
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
