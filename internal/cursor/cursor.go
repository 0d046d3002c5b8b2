// Package cursor は取得済みレコード列に対する閲覧位置を管理する。
// 位置は循環（ラップアラウンド）で前後に移動する。
package cursor

import "github.com/hitoshi/userdeck/internal/model"

// State はカーソルの状態。
type State string

const (
	// StateEmpty はレコード列が空の状態（初期状態）。
	StateEmpty State = "empty"
	// StateReady はレコード列が1件以上ある状態。
	StateReady State = "ready"
)

// Cursor は不変のレコード列と現在位置を保持する。
// ゼロ値は空のカーソルとして使用できる。並行アクセスは呼び出し側で保護すること。
type Cursor struct {
	records  []model.Record
	position int
}

// New は空のCursorを生成する。
func New() *Cursor {
	return &Cursor{}
}

// SetBatch はレコード列を丸ごと置き換え、位置を0に戻す。
// レコード列を変更する唯一の手段。呼び出し元のスライスはコピーして保持する。
func (c *Cursor) SetBatch(records []model.Record) {
	if len(records) == 0 {
		c.records = nil
	} else {
		c.records = append([]model.Record(nil), records...)
	}
	c.position = 0
}

// Current は現在位置のレコードを返す。空の場合はfalseを返す。
func (c *Cursor) Current() (model.Record, bool) {
	if len(c.records) == 0 {
		return model.Record{}, false
	}
	return c.records[c.position], true
}

// Advance は位置を1つ進める。末尾の次は先頭に戻る。空の場合は何もしない。
func (c *Cursor) Advance() {
	n := len(c.records)
	if n == 0 {
		return
	}
	c.position = (c.position + 1) % n
}

// Retreat は位置を1つ戻す。先頭の前は末尾に移る。空の場合は何もしない。
func (c *Cursor) Retreat() {
	n := len(c.records)
	if n == 0 {
		return
	}
	c.position = (c.position - 1 + n) % n
}

// Position は現在位置を返す。空の場合は0。
func (c *Cursor) Position() int {
	return c.position
}

// Len はレコード件数を返す。
func (c *Cursor) Len() int {
	return len(c.records)
}

// State は現在の状態を返す。
func (c *Cursor) State() State {
	if len(c.records) == 0 {
		return StateEmpty
	}
	return StateReady
}
