package security

import "testing"

func TestSanitizeText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "空文字列", input: "", want: ""},
		{name: "プレーンテキストはそのまま", input: "Terrence Rath", want: "Terrence Rath"},
		{name: "メールアドレスはそのまま", input: "terrence.rath@email.com", want: "terrence.rath@email.com"},
		{name: "タグを除去", input: "<b>bold</b> name", want: "bold name"},
		{name: "scriptを除去", input: `<script>alert("x")</script>Mia`, want: "Mia"},
		{name: "イベント属性ごと除去", input: `<img src=x onerror=alert(1)>Kai`, want: "Kai"},
		{name: "コメントを除去", input: "Ana<!-- hidden -->", want: "Ana"},
		{name: "アンパサンドを保持", input: "Smith & Sons", want: "Smith & Sons"},
		{name: "文字実体はそのまま", input: "Tom &amp; Jerry", want: "Tom &amp; Jerry"},
		{name: "記号を含むパスワード", input: "p&ss>w0rd", want: "p&ss>w0rd"},
		{name: "閉じていない山括弧", input: "pa<ss", want: "pa<ss"},
		{name: "HTML要素でないタグ風の文字列", input: "Xy<Zq>9", want: "Xy<Zq>9"},
		{name: "比較演算子風", input: "1<2 and 3>2", want: "1<2 and 3>2"},
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
	input := "<i>Ana</i> & <u>Bo</u>"

	first := s.SanitizeText(input)
	second := s.SanitizeText(first)
	if first != second {
		t.Errorf("not idempotent: %q then %q", first, second)
	}
}

func TestContainsMarkup(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"plain", false},
		{"pa<ss", false},
		{"Xy<Zq>9", false},
		{"<p>x</p>", true},
		{"x<br/>y", true},
		{"<!DOCTYPE html>", true},
	}

	for _, tt := range tests {
		if got := containsMarkup(tt.input); got != tt.want {
			t.Errorf("containsMarkup(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
