package model

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount は金額文字列が不正な場合のエラー。
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount は金額文字列をdecimalに変換する。
// ドット（12.34）とカンマ（12,34）の両方の小数点表記を受け付ける。
// 負数、指数表記、空文字列、センタボ未満の端数（0.005など）はErrInvalidAmountを返す。
// 保存値と集計値を一致させるため、戻り値は常に小数点以下2桁に正規化する。
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE+-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	rounded := d.Round(2)
	if !rounded.Equal(d) {
		return decimal.Zero, ErrInvalidAmount
	}
	return rounded, nil
}

// FormatAmount は金額を小数点以下2桁のテキストに変換する。
// DBのテキスト列およびAPIレスポンスで使用する表現。
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
