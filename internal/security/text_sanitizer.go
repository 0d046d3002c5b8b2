package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextSanitizer は上流APIの文字列値に含まれるHTMLマークアップを取り除く。
// HTML要素として解釈されるタグを含む値だけを対象とし、それ以外の値は受信したまま返す。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はマークアップを含む値からタグを除去したテキストを返す。
// "pa<ss" や "Xy<Zq>9" のようにHTML要素として解釈されない記号はそのまま残す。
func (s *TextSanitizer) SanitizeText(v string) string {
	if !containsMarkup(v) {
		return v
	}
	return html.UnescapeString(s.policy.Sanitize(v))
}

// containsMarkup はvが既知のHTML要素のタグ、コメント、DOCTYPEを含むかを返す。
func containsMarkup(v string) bool {
	if !strings.Contains(v, "<") {
		return false
	}

	z := html.NewTokenizer(strings.NewReader(v))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != 0 {
				return true
			}
		case html.CommentToken, html.DoctypeToken:
			return true
		}
	}
}
