package model

import "fmt"

// FieldError はバリデーション失敗したフィールド単位の詳細を表す。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // エラーメッセージ
	Category string       // カテゴリ: auth, validation, storage, system
	Action   string       // ユーザー向け対処方法
	Fields   []FieldError // フィールド単位の詳細（validationのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeEmailInUse         = "EMAIL_IN_USE"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeUploadDisabled     = "UPLOAD_DISABLED"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
)

// NewValidationError は入力不正エラーを生成する。
func NewValidationError(message string, fields ...FieldError) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Fields:   fields,
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Faça login novamente.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Email ou senha inválidos",
		Category: "auth",
		Action:   "Verifique o email e a senha informados.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Acesso negado",
		Category: "auth",
	}
}

// NewNotFoundError は指定リソースが見つからない場合のエラーを生成する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s não encontrado: %s", resource, id),
		Category: "validation",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Usuário não encontrado",
		Category: "auth",
		Action:   "Faça login novamente.",
	}
}

// NewEmailInUseError はメールアドレス重複エラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "Email já está em uso",
		Category: "validation",
		Fields:   []FieldError{{Field: "email", Message: "Email já está em uso"}},
	}
}

// NewStorageUnavailableError はストレージ到達不能エラーを生成する。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "Armazenamento indisponível",
		Category: "storage",
		Action:   "Tente novamente em alguns instantes.",
	}
}

// NewUploadDisabledError はオブジェクトストレージ未設定時のエラーを生成する。
func NewUploadDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadDisabled,
		Message:  "Upload de comprovantes não configurado",
		Category: "storage",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "URL de origem bloqueada pela política de segurança",
		Category: "validation",
		Action:   "Use uma URL pública (http ou https).",
	}
}

// RequireNonEmpty は値が空のフィールドをFieldErrorとして返す。
// 引数はフィールド名と値を交互に並べる。
func RequireNonEmpty(pairs ...string) []FieldError {
	var fields []FieldError
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			fields = append(fields, FieldError{Field: pairs[i], Message: "não pode ser vazio"})
		}
	}
	return fields
}
