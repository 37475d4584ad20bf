package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/despesas/internal/auth"
	"github.com/hitoshi/despesas/internal/middleware"
	"github.com/hitoshi/despesas/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, userID int64) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン・ログアウト・ユーザー登録のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=200"`
	Role     string `json:"role" validate:"omitempty,role"`
}

// Login はIdPで認証し、セッションCookieを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req, "Dados de requisição inválidos"); err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Signup は管理者が新しいユーザーを登録する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeAndValidate(w, r, &req, "Dados de requisição inválidos"); err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, err := h.service.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := toUserResponse(user)
	resp.AuthUID = user.AuthUID
	writeJSON(w, http.StatusOK, resp)
}

// Logout はセッションを破棄する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// 失敗してもCookieはクリアする
		}
	}

	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logout realizado com sucesso"})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), p.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// setSessionCookie はHTTP OnlyのセッションCookieを設定する。maxAgeが負の場合は削除する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
