// Package cli はターミナル上でセッションのレコードを1件ずつ閲覧する対話型ブラウザーを提供する。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/hitoshi/userdeck/internal/event"
	"github.com/hitoshi/userdeck/internal/session"
)

const helpText = `コマンド:
  n, next     次のユーザー
  p, prev     前のユーザー
  show        現在のユーザーを再表示
  retry       取得に失敗した場合に新しいセッションで再取得
  help        このヘルプを表示
  quit, exit  終了`

// LineReader は1行ずつ入力を読むインターフェース。*readline.Instanceが満たす。
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// SessionFactory はフェッチ開始前の新しいセッションを返す。
type SessionFactory func(ctx context.Context) (*session.Session, error)

// Browser は1つのセッションを対話的に閲覧する。
type Browser struct {
	newSession SessionFactory
	out        io.Writer
	keys       []string
	width      int
	logger     *slog.Logger

	mu          sync.Mutex
	current     *session.Session
	unsubscribe func()
}

// BrowserConfig はBrowserの表示設定。
type BrowserConfig struct {
	Keys  []string // 表示するフィールド（空の場合は既定のキー）
	Width int      // 区切り線の幅
}

// NewBrowser はBrowserを生成する。
func NewBrowser(newSession SessionFactory, out io.Writer, logger *slog.Logger, cfg BrowserConfig) *Browser {
	return &Browser{
		newSession: newSession,
		out:        out,
		keys:       cfg.Keys,
		width:      cfg.Width,
		logger:     logger,
	}
}

// NewReadline は閲覧用の行エディタを生成する。historyFileが空の場合は履歴を保存しない。
func NewReadline(historyFile string, stdout io.Writer) (*readline.Instance, error) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("next"),
		readline.PcItem("prev"),
		readline.PcItem("show"),
		readline.PcItem("retry"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
	cfg := &readline.Config{
		Prompt:          "userdeck> ",
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if stdout != nil {
		cfg.Stdout = stdout
	}
	return readline.NewEx(cfg)
}

// Run はセッションを作成してフェッチの完了を待ち、入力ループを実行する。
// quit、EOF、Ctrl-C、またはctxのキャンセルで終了する。
func (b *Browser) Run(ctx context.Context, rl LineReader) error {
	defer b.closeCurrent()

	if err := b.open(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		rl.SetPrompt(b.prompt())

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "n", "next":
			b.session().Advance()
		case "p", "prev":
			b.session().Retreat()
		case "show":
			b.render()
		case "retry":
			if err := b.retry(ctx); err != nil {
				return err
			}
		case "help", "?":
			b.println(helpText)
		case "q", "quit", "exit":
			return nil
		default:
			b.println(fmt.Sprintf("不明なコマンドです: %s（help で一覧を表示）", fields[0]))
		}
	}
}

// open は新しいセッションを作成し、状態変化の購読を開始してフェッチの決着を待つ。
func (b *Browser) open(ctx context.Context) error {
	s, err := b.newSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	unsubscribe := s.Bus().Subscribe(b.onEvent)

	b.mu.Lock()
	b.current = s
	b.unsubscribe = unsubscribe
	b.mu.Unlock()

	b.println("ユーザーを取得しています...")
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start fetch: %w", err)
	}

	b.logger.Info("閲覧セッションを開始しました", slog.String("session_id", s.ID()))
	select {
	case <-s.Done():
	case <-ctx.Done():
	}
	return nil
}

func (b *Browser) retry(ctx context.Context) error {
	if b.session().Err() == nil {
		b.println("取得に失敗していないため再取得は不要です。")
		return nil
	}
	b.closeCurrent()
	return b.open(ctx)
}

func (b *Browser) onEvent(ev event.Event) {
	switch ev.Type {
	case event.BatchLoaded, event.FetchFailed, event.PositionChanged:
		b.render()
	}
}

func (b *Browser) render() {
	v := b.session().View(b.keys)
	b.mu.Lock()
	defer b.mu.Unlock()
	Render(b.out, v, b.width)
}

func (b *Browser) prompt() string {
	v := b.session().View(b.keys)
	if v.Total == 0 {
		return "userdeck> "
	}
	return fmt.Sprintf("userdeck [%d/%d]> ", v.Position+1, v.Total)
}

func (b *Browser) session() *session.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Browser) closeCurrent() {
	b.mu.Lock()
	s, unsubscribe := b.current, b.unsubscribe
	b.current, b.unsubscribe = nil, nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if s != nil {
		s.Close()
	}
}

func (b *Browser) println(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintln(b.out, msg)
}
