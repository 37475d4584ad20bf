package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/despesas/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListByRole(ctx context.Context, p model.Principal, role model.Role) ([]*model.User, error)
}

// UserHandler はユーザー参照のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// GetUser はIDでユーザーを返す。認証済みであれば誰でも参照できる。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		handleServiceError(w, r, model.NewValidationError("ID de usuário inválido",
			model.FieldError{Field: "id", Message: "deve ser um número inteiro positivo"}))
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ListUsers はロールでユーザーを絞り込んで返す。roleを省略した場合はuser。
// GET /api/users?role=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	role := model.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = model.RoleUser
	}

	users, err := h.service.ListByRole(r.Context(), p, role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}
