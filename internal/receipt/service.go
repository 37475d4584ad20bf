// Package receipt は領収書画像のアップロードを提供する。
//
// 画像はbase64文字列または外部URLで受け取り、オブジェクトストレージに
// "<userId>_<unixMillis>.<ext>" のキーで保存して公開URLを返す。
package receipt

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/despesas/internal/metrics"
	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/security"
)

// ObjectStore はアップロード先のオブジェクトストレージを抽象化する。
type ObjectStore interface {
	// PutObject はオブジェクトを保存し、公開URLを返す。
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// allowedExtensions はアップロードを受け付ける拡張子。
var allowedExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// Input はアップロード要求。FileとSourceURLのどちらか一方を指定する。
type Input struct {
	File      string
	Filename  string
	SourceURL string
}

// Service は領収書アップロードのサービス層。
type Service struct {
	store    ObjectStore
	guard    security.URLGuard
	maxBytes int64
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewService はServiceを生成する。storeがnilの場合、アップロードは無効になる。
func NewService(store ObjectStore, guard security.URLGuard, maxBytes int64, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		store:    store,
		guard:    guard,
		maxBytes: maxBytes,
		metrics:  rec,
		now:      time.Now,
	}
}

// Enabled はアップロード先が設定されているかを返す。
func (s *Service) Enabled() bool {
	return s.store != nil
}

// Upload は画像を保存し、公開URLを返す。
func (s *Service) Upload(ctx context.Context, p model.Principal, in Input) (string, error) {
	if s.store == nil {
		return "", model.NewUploadDisabledError()
	}

	body, ext, err := s.readInput(ctx, in)
	if err != nil {
		s.metrics.RecordUpload(metrics.ResultRejected, 0)
		return "", err
	}

	key := fmt.Sprintf("%d_%d.%s", p.UserID, s.now().UnixMilli(), ext)
	url, err := s.store.PutObject(ctx, key, contentTypeFor(ext), body)
	if err != nil {
		s.metrics.RecordUpload(metrics.ResultFailure, 0)
		return "", fmt.Errorf("領収書のアップロードに失敗しました: %w", err)
	}

	s.metrics.RecordUpload(metrics.ResultSuccess, len(body))
	slog.Info("receipt uploaded",
		slog.Int64("user_id", p.UserID),
		slog.String("key", key),
		slog.Int("bytes", len(body)),
	)
	return url, nil
}

func (s *Service) readInput(ctx context.Context, in Input) ([]byte, string, error) {
	switch {
	case in.File != "":
		ext, err := extensionOf(in.Filename)
		if err != nil {
			return nil, "", err
		}
		body, err := decodeBase64(in.File)
		if err != nil {
			return nil, "", err
		}
		if err := s.checkSize(len(body)); err != nil {
			return nil, "", err
		}
		return body, ext, nil
	case in.SourceURL != "":
		return s.fetch(ctx, in)
	default:
		return nil, "", model.NewValidationError("Arquivo e nome do arquivo são obrigatórios",
			model.FieldError{Field: "file", Message: "não pode ser vazio"})
	}
}

// fetch は外部URLから画像を取得する。拡張子はFilename、なければURLのパスから決める。
func (s *Service) fetch(ctx context.Context, in Input) ([]byte, string, error) {
	if s.guard == nil {
		return nil, "", model.NewSSRFBlockedError()
	}
	if err := s.guard.ValidateURL(in.SourceURL); err != nil {
		slog.Warn("receipt source url blocked",
			slog.String("url", in.SourceURL),
			slog.String("error", err.Error()),
		)
		return nil, "", model.NewSSRFBlockedError()
	}

	name := in.Filename
	if name == "" {
		name = sourcePath(in.SourceURL)
	}
	ext, err := extensionOf(name)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.SourceURL, nil)
	if err != nil {
		return nil, "", model.NewValidationError("URL de origem inválida",
			model.FieldError{Field: "sourceUrl", Message: "URL inválida"})
	}
	resp, err := s.guard.Client().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("領収書の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", model.NewValidationError("Não foi possível obter o arquivo de origem",
			model.FieldError{Field: "sourceUrl", Message: fmt.Sprintf("status %d", resp.StatusCode)})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("領収書の読み込みに失敗しました: %w", err)
	}
	if err := s.checkSize(len(body)); err != nil {
		return nil, "", err
	}
	return body, ext, nil
}

func (s *Service) checkSize(n int) error {
	if n == 0 {
		return model.NewValidationError("Arquivo vazio",
			model.FieldError{Field: "file", Message: "não pode ser vazio"})
	}
	if s.maxBytes > 0 && int64(n) > s.maxBytes {
		return model.NewValidationError("Arquivo excede o tamanho máximo",
			model.FieldError{Field: "file", Message: fmt.Sprintf("máximo de %d bytes", s.maxBytes)})
	}
	return nil
}

func extensionOf(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if !slices.Contains(allowedExtensions, ext) {
		return "", model.NewValidationError("Tipo de arquivo não permitido",
			model.FieldError{Field: "filename", Message: "use jpg, jpeg, png, gif ou webp"})
	}
	return ext, nil
}

func decodeBase64(data string) ([]byte, error) {
	data = dataURIPrefix.ReplaceAllString(strings.TrimSpace(data), "")
	body, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		body, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
	}
	if err != nil {
		return nil, model.NewValidationError("Arquivo inválido",
			model.FieldError{Field: "file", Message: "base64 inválido"})
	}
	return body, nil
}

// contentTypeFor は拡張子からContent-Typeを返す。jpgはimage/jpegになる。
func contentTypeFor(ext string) string {
	if ext == "jpg" {
		return "image/jpeg"
	}
	return "image/" + ext
}

func sourcePath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return path.Base(rawURL)
}
