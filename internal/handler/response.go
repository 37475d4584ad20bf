// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/despesas/internal/middleware"
	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository/fallback"
)

// messageResponse は本文がメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	}

	// フォールバック無効時はDB到達不能がそのまま返ってくる
	if fallback.IsConnectionError(err) {
		slog.Error("storage unavailable", attrs...)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewStorageUnavailableError())
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", attrs...)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeEmailInUse, model.ErrCodeSSRFBlocked:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUploadDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// principalOrUnauthorized はコンテキストからPrincipalを取り出す。
// 取り出せない場合は401を書き込みfalseを返す。
func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return model.Principal{}, false
	}
	return p, true
}
