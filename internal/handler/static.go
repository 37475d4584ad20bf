package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// NewStaticHandler はビルド済みのダッシュボード（SPA）を配信するハンドラーを返す。
// 存在しないパスにはindex.htmlを返し、クライアント側のルーティングに任せる。
// /api/ 配下の未定義パスとGET・HEAD以外は404のままにする。
func NewStaticHandler(dir string) http.Handler {
	return newStaticHandler(os.DirFS(dir))
}

func newStaticHandler(fsys fs.FS) http.Handler {
	files := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method != http.MethodGet && r.Method != http.MethodHead) || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "."
		}
		if _, err := fs.Stat(fsys, name); errors.Is(err, fs.ErrNotExist) {
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFileFS(w, r, fsys, "index.html")
			return
		}

		if strings.HasPrefix(name, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
		}
		files.ServeHTTP(w, r)
	})
}
