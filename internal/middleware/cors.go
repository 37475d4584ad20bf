package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// NewCORSMiddleware はダッシュボードのオリジンに対するCORSミドルウェアを返す。
// allowedOriginsはカンマ区切りで複数指定できる。1つだけの場合は常にそのオリジンを返し、
// 複数の場合はリクエストのOriginが一致したときだけ返す。
// 空の場合は同一オリジン配信とみなしヘッダーを付与しない。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := splitOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := matchOrigin(origins, r.Header.Get("Origin")); origin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", "86400")
			}
			if len(origins) > 0 {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// matchOrigin はレスポンスに設定するオリジンを返す。該当なしは空文字列。
func matchOrigin(origins []string, requestOrigin string) string {
	switch {
	case len(origins) == 1:
		return origins[0]
	case slices.Contains(origins, requestOrigin):
		return requestOrigin
	default:
		return ""
	}
}
