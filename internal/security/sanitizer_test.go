package security

import "testing"

func TestSanitizeText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "プレーンテキストはそのまま", input: "Material de escritório", want: "Material de escritório"},
		{name: "アンパサンドは実体参照にならない", input: "Silva & Filhos", want: "Silva & Filhos"},
		{name: "タグは除去される", input: "<b>Serviço</b>", want: "Serviço"},
		{name: "scriptは内容ごと除去される", input: `Cliente<script>alert(1)</script>`, want: "Cliente"},
		{name: "前後の空白を除去", input: "  0001  ", want: "0001"},
		{name: "空文字列", input: "", want: ""},
		{name: "比較演算子のみのテキスト", input: "a < b", want: "a < b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	inputs := []string{"<i>x</i> & y", "&lt;b&gt;bold&lt;/b&gt;", "Serviço"}
	for _, in := range inputs {
		once := s.SanitizeText(in)
		if twice := s.SanitizeText(once); twice != once {
			t.Errorf("SanitizeText not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
