package cursor

import (
	"strings"
	"unicode"

	"github.com/hitoshi/userdeck/internal/model"
)

// FallbackAvatarURL はアバター未設定時に表示する既定画像のURL。
const FallbackAvatarURL = "https://w7.pngwing.com/pngs/981/645/png-transparent-default-profile-united-states-computer-icons-desktop-free-high-quality-person-icon-miscellaneous-silhouette-symbol-thumbnail.png"

// DefaultKeys は表示するフィールドの既定の並び。
var DefaultKeys = []string{
	"uid",
	"id",
	"username",
	"first_name",
	"last_name",
	"email",
	"password",
}

// fieldLabels は既知フィールドの表示ラベル。
var fieldLabels = map[string]string{
	"uid":        "UID",
	"id":         "ID",
	"username":   "Username",
	"first_name": "First Name",
	"last_name":  "Last Name",
	"email":      "Email",
	"password":   "Password",
	"avatar":     "Avatar",
}

// Field は表示用のラベルと値の組。
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DisplayPairs はkeysの順にラベルと文字列化した値の組を返す。
// キーは大文字小文字を区別しない。値を持たないキーは空文字列になる。
func DisplayPairs(rec model.Record, keys []string) []Field {
	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		value, _ := rec.Lookup(key)
		fields = append(fields, Field{
			Label: Label(key),
			Value: value,
		})
	}
	return fields
}

// Label はフィールド名の表示ラベルを返す。
// 既知のフィールド以外はスネークケースを単語区切りのタイトルケースに変換する。
func Label(key string) string {
	normalized := model.NormalizeKey(key)
	if label, ok := fieldLabels[normalized]; ok {
		return label
	}
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// ResolveAvatarURL は表示用のアバターURLを返す。
// 最初の "?" 以降のクエリ文字列を除去し、空の場合はFallbackAvatarURLを返す。
func ResolveAvatarURL(rec model.Record) string {
	avatar, _, _ := strings.Cut(strings.TrimSpace(rec.Avatar), "?")
	if avatar == "" {
		return FallbackAvatarURL
	}
	return avatar
}
