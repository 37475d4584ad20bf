package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/despesas/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限。
// 領収書のbase64ペイロードを含むため大きめに取る。
const maxBodyBytes = 16 << 20

var validate = newValidator()

// newValidator はJSONフィールド名でエラーを報告するvalidatorを生成する。
// 金額（amount）と日付（date）のカスタムタグを登録する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := model.ParseAmount(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("billingstatus", func(fl validator.FieldLevel) bool {
		return model.BillingStatus(fl.Field().String()).IsValid()
	})
	return v
}

// amountInput は文字列と数値の両方を受け付ける金額フィールド。
type amountInput string

// UnmarshalJSON は "12.34" と 12.34 の両方を受け付ける。
func (a *amountInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = amountInput(n.String())
	return nil
}

// decodeAndValidate はリクエストボディをdstにデコードしてタグ検証を行う。
// 失敗時はフィールド単位の詳細を持つバリデーションエラーを返す。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, message string) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewValidationError(message,
				model.FieldError{Field: "body", Message: "corpo da requisição vazio"})
		}
		return model.NewValidationError(message, decodeFieldError(err))
	}
	if err := validate.Struct(dst); err != nil {
		return model.NewValidationError(message, toFieldErrors(err)...)
	}
	return nil
}

// decodeFieldError はJSONデコードエラーをFieldErrorに変換する。
func decodeFieldError(err error) model.FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return model.FieldError{Field: typeErr.Field, Message: "tipo inválido"}
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return model.FieldError{Field: "body", Message: "corpo da requisição muito grande"}
	}
	return model.FieldError{Field: "body", Message: "JSON inválido"}
}

// toFieldErrors はvalidatorのエラーをFieldErrorの一覧に変換する。
func toFieldErrors(err error) []model.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.FieldError{{Field: "body", Message: err.Error()}}
	}

	fields := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, model.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "campo obrigatório"
	case "required_with":
		return fmt.Sprintf("obrigatório junto com %s", fe.Param())
	case "email":
		return "email inválido"
	case "min":
		return fmt.Sprintf("deve ter pelo menos %s caracteres", fe.Param())
	case "max":
		return fmt.Sprintf("deve ter no máximo %s caracteres", fe.Param())
	case "amount":
		return "valor inválido"
	case "date":
		return "data inválida (use YYYY-MM-DD)"
	case "role":
		return "deve ser admin ou user"
	case "billingstatus":
		return "deve ser pendente, pago, vencido ou cancelado"
	case "url", "http_url":
		return "URL inválida"
	default:
		return "valor inválido"
	}
}

// mustAmount は検証済みの金額文字列をdecimalに変換する。
func mustAmount(a amountInput) decimal.Decimal {
	d, _ := model.ParseAmount(string(a))
	return d
}

// optionalAmount は検証済みの任意金額をポインタとして返す。
func optionalAmount(a *amountInput) *decimal.Decimal {
	if a == nil {
		return nil
	}
	d := mustAmount(*a)
	return &d
}

// mustDate は検証済みの日付文字列をDateに変換する。
func mustDate(s string) model.Date {
	d, _ := model.ParseDate(s)
	return d
}

// optionalDate は検証済みの任意日付をポインタとして返す。
func optionalDate(s *string) *model.Date {
	if s == nil {
		return nil
	}
	d := mustDate(*s)
	return &d
}
