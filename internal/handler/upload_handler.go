package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/receipt"
)

// UploadServiceInterface はアップロードハンドラーが必要とするサービスインターフェース。
type UploadServiceInterface interface {
	Upload(ctx context.Context, p model.Principal, in receipt.Input) (string, error)
}

// UploadHandler は領収書画像アップロードのHTTPハンドラー。
type UploadHandler struct {
	service UploadServiceInterface
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service UploadServiceInterface) *UploadHandler {
	return &UploadHandler{service: service}
}

// uploadRequest はbase64画像（file + filename）または取得元URL（sourceUrl）を受け付ける。
type uploadRequest struct {
	File      string `json:"file" validate:"required_without=SourceURL"`
	Filename  string `json:"filename" validate:"required_with=File"`
	SourceURL string `json:"sourceUrl" validate:"omitempty,url"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload は領収書画像を保存し、公開URLを返す。
// POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req uploadRequest
	if err := decodeAndValidate(w, r, &req, "Arquivo e nome do arquivo são obrigatórios"); err != nil {
		handleServiceError(w, r, err)
		return
	}

	url, err := h.service.Upload(r.Context(), p, receipt.Input{
		File:      req.File,
		Filename:  req.Filename,
		SourceURL: req.SourceURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{URL: url})
}
