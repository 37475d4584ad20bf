// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/despesas/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みのPrincipal（ユーザーIDとロール）をリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. セッションの有効性を検証
			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if session == nil || !session.ExpiresAt.After(time.Now()) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. Principalをコンテキストに注入
			p := model.Principal{UserID: session.UserID, Role: session.Role}
			notePrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin は管理者以外のリクエストに403 Forbiddenを返すミドルウェア。
// セッションミドルウェアの後に配置する。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		if !p.IsAdmin() {
			slog.Warn("admin access denied",
				slog.Int64("user_id", p.UserID),
				slog.String("path", r.URL.Path),
			)
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext はリクエストコンテキストからPrincipalを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok || p.UserID == 0 {
		return model.Principal{}, false
	}
	return p, true
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
