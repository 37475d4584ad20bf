package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/despesas/internal/metrics"
)

// unmatchedRoute はルーティングされなかったリクエストのラベル。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はリクエスト件数と処理時間を記録するミドルウェアを返す。
// ルートラベルにはchiのルートパターンを使う。パターンはハンドラー実行後に確定する。
func NewMetricsMiddleware(rec metrics.Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			rec.ObserveRequest(r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}
