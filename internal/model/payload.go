package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The types below are the JSON blobs stored in text columns of exam_attempts.
// Their wire shape is the untagged legacy one so rows written by older
// deployments decode unchanged:
//
//	answers        {"12":"B","7":"D"}
//	question_order [12,7,31]          ("12" string ids are accepted on read)
//	option_mapping {"12":{"A":"C","B":"A","C":"D","D":"B"}}
//	answer_key     {"12":"B","7":"A"}

// AnswerMap maps question id to the option label the participant picked,
// as presented to them (post-shuffle).
type AnswerMap map[int64]string

// Answered returns how many entries carry a non-empty label.
func (m AnswerMap) Answered() int {
	n := 0
	for _, v := range m {
		if v != "" {
			n++
		}
	}
	return n
}

// UnmarshalJSON decodes leniently. Keys that are not integer ids and values
// that are not strings are skipped instead of failing the whole map.
func (m *AnswerMap) UnmarshalJSON(b []byte) error {
	out, err := decodeLabelMap(b)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// Value implements driver.Valuer.
func (m AnswerMap) Value() (driver.Value, error) {
	return encodeText(map[int64]string(m), "{}")
}

// Scan implements sql.Scanner. A blob that fails to parse reads as no answers.
func (m *AnswerMap) Scan(src any) error {
	b, err := scanBytes(src)
	if err != nil {
		return err
	}
	out, err := decodeLabelMap(b)
	if err != nil {
		out = AnswerMap{}
	}
	*m = out
	return nil
}

// AnswerKey maps question id to the canonical (unshuffled) correct label.
type AnswerKey map[int64]string

func (k AnswerKey) Value() (driver.Value, error) {
	if k == nil {
		return nil, nil
	}
	return encodeText(map[int64]string(k), "{}")
}

func (k *AnswerKey) Scan(src any) error {
	if src == nil {
		*k = nil
		return nil
	}
	b, err := scanBytes(src)
	if err != nil {
		return err
	}
	out, err := decodeLabelMap(b)
	if err != nil {
		return fmt.Errorf("decode answer key: %w", err)
	}
	*k = AnswerKey(out)
	return nil
}

// QuestionOrder is the ordered list of question ids presented to the participant.
type QuestionOrder []int64

func (o *QuestionOrder) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(QuestionOrder, 0, len(raw))
	for _, r := range raw {
		id, ok := parseID(r)
		if !ok {
			return fmt.Errorf("invalid question id %s", string(r))
		}
		out = append(out, id)
	}
	*o = out
	return nil
}

func (o QuestionOrder) Value() (driver.Value, error) {
	return encodeText([]int64(o), "[]")
}

func (o *QuestionOrder) Scan(src any) error {
	b, err := scanBytes(src)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		*o = QuestionOrder{}
		return nil
	}
	return o.UnmarshalJSON(b)
}

// OptionMapping maps question id to a presented-label → original-label table.
type OptionMapping map[int64]map[string]string

// Translate returns the canonical label for a presented one. When the
// question has no table, or the label is not in it, the label is returned as is.
func (m OptionMapping) Translate(questionID int64, presented string) string {
	table, ok := m[questionID]
	if !ok {
		return presented
	}
	if original, ok := table[presented]; ok {
		return original
	}
	return presented
}

func (m *OptionMapping) UnmarshalJSON(b []byte) error {
	var raw map[string]map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(OptionMapping, len(raw))
	for k, table := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			continue
		}
		out[id] = table
	}
	*m = out
	return nil
}

func (m OptionMapping) Value() (driver.Value, error) {
	return encodeText(map[int64]map[string]string(m), "{}")
}

func (m *OptionMapping) Scan(src any) error {
	b, err := scanBytes(src)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = OptionMapping{}
		return nil
	}
	return m.UnmarshalJSON(b)
}

// ─── helpers ────────────────────────────────────────────────────────

func decodeLabelMap(b []byte) (map[int64]string, error) {
	out := make(map[int64]string)
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			continue
		}
		var label string
		if err := json.Unmarshal(v, &label); err != nil {
			continue
		}
		out[id] = strings.ToUpper(strings.TrimSpace(label))
	}
	return out, nil
}

func parseID(r json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(r, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(r, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

func encodeText(v any, empty string) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func scanBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported source type %T", src)
	}
}
