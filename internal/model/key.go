package model

import (
	"strconv"
	"strings"
)

// NormalizeKey は上流スキーマのフィールド名を正規化する。
// 大文字小文字の揺れ（Username/username, Avatar/avatar）を吸収する。
func NormalizeKey(key string) string {
	return normalizeKey(key)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
