// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は経費・請求の自由入力欄からHTMLを除去する。
// URLGuard は領収書の外部URL取得時のSSRFを防止する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト欄のサニタイズ機能を定義する。
type TextSanitizer interface {
	// SanitizeText は全てのタグを除去し、前後の空白を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(s string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses は実体参照でエンコードされたタグを除去するための最大反復回数。
const maxSanitizePasses = 3

// SanitizeText はタグを除去する。
// StrictPolicyがエスケープした実体参照は元の文字に戻す（JSONで返すため）。
// 戻した結果にタグが現れた場合は、出力が変化しなくなるまで繰り返す。
func (s *textSanitizer) SanitizeText(in string) string {
	out := strings.TrimSpace(in)
	for i := 0; i < maxSanitizePasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(out)))
		if next == out {
			break
		}
		out = next
	}
	return out
}
