package handler

import "net/http"

// StorageReporter は現在のストレージ種別（postgres または memory）を返す。
type StorageReporter interface {
	Storage() string
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// インメモリフォールバック中もプロセスは応答可能なため200を返す。
// GET /health
func NewHealthHandler(storage StorageReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Storage: storage.Storage(),
		})
	}
}
