package randomdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/hitoshi/userdeck/internal/model"
)

// DecodeRecords はレスポンスボディをレコード列に変換する。
// ボディはJSON配列または単一オブジェクト（size=1時の上流の挙動）を受け付ける。
// フィールド名は大文字小文字を区別せずに照合し、表記揺れがある場合は小文字表記を優先する。
// sanitizerがnilでない場合、文字列値はすべてsanitizerを通す。
func DecodeRecords(body []byte, sanitizer TextSanitizer) ([]model.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("レスポンスボディが空です")
	}

	var raws []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	case '{':
		raws = []json.RawMessage{trimmed}
	default:
		if bytes.Equal(trimmed, []byte("null")) {
			return []model.Record{}, nil
		}
		return nil, fmt.Errorf("レスポンスがJSON配列またはオブジェクトではありません")
	}

	records := make([]model.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := decodeRecord(raw, sanitizer)
		if err != nil {
			return nil, fmt.Errorf("レコード[%d]のパースに失敗しました: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeRecord は1件分のJSONオブジェクトをRecordに変換する。
func decodeRecord(raw json.RawMessage, sanitizer TextSanitizer) (model.Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Record{}, err
	}
	if fields == nil {
		return model.Record{}, errors.New("レコードがJSONオブジェクトではありません")
	}

	// 大文字表記のキーが先、小文字表記のキーが後に処理されるよう整列する
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rec model.Record
	for _, key := range keys {
		normalized := model.NormalizeKey(key)
		value := fields[key]

		if normalized == "id" {
			id, err := decodeID(value)
			if err != nil {
				return model.Record{}, fmt.Errorf("id: %w", err)
			}
			rec.ID = id
			continue
		}

		text, ok := scalarText(value)
		if !ok {
			// address や employment などの入れ子は表示対象外
			continue
		}
		if sanitizer != nil {
			text = sanitizer.SanitizeText(text)
		}

		switch normalized {
		case "uid":
			rec.UID = text
		case "password":
			rec.Password = text
		case "first_name":
			rec.FirstName = text
		case "last_name":
			rec.LastName = text
		case "username":
			rec.Username = text
		case "email":
			rec.Email = text
		case "avatar":
			rec.Avatar = text
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[normalized] = text
		}
	}
	return rec, nil
}

// decodeID は数値（または数値文字列）のidを取り出す。
func decodeID(raw json.RawMessage) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(t, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("数値ではありません: %s", string(raw))
	}
}

// scalarText はスカラー値を文字列化する。オブジェクトと配列はfalseを返す。
func scalarText(raw json.RawMessage) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", true
	default:
		return "", false
	}
}
