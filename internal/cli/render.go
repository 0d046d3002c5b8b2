package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/hitoshi/userdeck/internal/model"
	"github.com/hitoshi/userdeck/internal/session"
)

const (
	defaultRuleWidth = 40
	maxRuleWidth     = 72
)

// getTermSize is a test seam for term.GetSize.
var getTermSize = term.GetSize

// RuleWidth は区切り線の幅を決める。fが端末でない場合は既定値を使う。
func RuleWidth(f *os.File) int {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return defaultRuleWidth
	}
	w, _, err := getTermSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultRuleWidth
	}
	return min(w, maxRuleWidth)
}

// Render はセッションのスナップショットを1画面分として書き出す。
func Render(w io.Writer, v session.View, width int) {
	if width <= 0 {
		width = defaultRuleWidth
	}
	rule := strings.Repeat("─", width)

	fmt.Fprintln(w, rule)
	switch {
	case v.FetchStatus == model.FetchStatusPending || v.FetchStatus == model.FetchStatusIdle:
		fmt.Fprintln(w, "ユーザーを取得しています...")
	case v.Err != nil:
		fmt.Fprintf(w, "取得に失敗しました: %v\n", v.Err)
		fmt.Fprintln(w, "retry で再取得できます。")
	case v.Record == nil:
		fmt.Fprintln(w, "表示できるユーザーがいません。")
	default:
		renderRecord(w, v.Record)
		fmt.Fprintf(w, "[%d/%d]\n", v.Position+1, v.Total)
	}
	fmt.Fprintln(w, rule)
}

func renderRecord(w io.Writer, rec *session.RecordView) {
	labelWidth := utf8.RuneCountInString("Avatar")
	labels := make([]string, len(rec.Fields))
	for i, f := range rec.Fields {
		labels[i] = printable(f.Label)
		labelWidth = max(labelWidth, utf8.RuneCountInString(labels[i]))
	}

	writeLine := func(label, value string) {
		pad := strings.Repeat(" ", labelWidth-utf8.RuneCountInString(label))
		fmt.Fprintf(w, "%s%s : %s\n", label, pad, printable(value))
	}

	writeLine("Avatar", rec.AvatarURL)
	for i, f := range rec.Fields {
		writeLine(labels[i], f.Value)
	}
}

// printable は端末制御に使われる文字（ESCや改行を含む）を取り除く。
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
