package view

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/user/agentinbox/internal/threads"
)

// Row is one key/value line of the state inspector.
type Row struct {
	Key   string
	Value string
	// Multiline is set for structured values rendered as indented JSON.
	Multiline bool
}

// StateRows flattens a thread's values into display rows sorted by key.
// Scalars are shown as text, dates are formatted and objects or arrays
// are shown as indented JSON.
func StateRows(values json.RawMessage, p *Previewer) []Row {
	if len(values) == 0 {
		return nil
	}
	var top map[string]any
	if err := json.Unmarshal(values, &top); err != nil {
		return []Row{{Key: "Values", Value: p.Truncate(string(values)), Multiline: true}}
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		value, multiline := FormatValue(top[k])
		rows = append(rows, Row{Key: PrettifyKey(k), Value: p.Truncate(value), Multiline: multiline})
	}
	return rows
}

// FormatValue renders a decoded JSON value for display.
func FormatValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "null", false
	case string:
		if t, ok := threads.ParseTime(val); ok {
			return FormatTime(t), false
		}
		return val, strings.Contains(val, "\n")
	case bool:
		return fmt.Sprint(val), false
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), false
	default:
		data, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return fmt.Sprint(val), false
		}
		return string(data), true
	}
}

// FormatTime renders t for people.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}

// FormatTimestamp parses and formats a backend timestamp, returning the
// input unchanged when it cannot be parsed.
func FormatTimestamp(s string) string {
	if t, ok := threads.ParseTime(s); ok {
		return FormatTime(t)
	}
	return s
}

// PrettifyKey turns snake_case and camelCase keys into words.
func PrettifyKey(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
