package weather

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/i474232898/weather-monitor/internal/common"
)

// payload is a decoded provider object with tolerant field access.
type payload map[string]any

// extractPayload returns the first top-level brace-balanced block of text
// that decodes into a JSON object. Braces inside string literals are ignored.
func extractPayload(text string) (payload, bool) {
	start := 0
	for {
		open := strings.IndexByte(text[start:], '{')
		if open < 0 {
			return nil, false
		}
		open += start

		end, ok := matchBrace(text, open)
		if !ok {
			// A stray unclosed brace; a later block may still balance.
			start = open + 1
			continue
		}

		var p payload
		if err := json.Unmarshal([]byte(text[open:end+1]), &p); err == nil && p != nil {
			return p, true
		}
		start = end + 1
	}
}

// matchBrace returns the index of the brace closing the one at open.
func matchBrace(text string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// lookup walks a dotted path. Numeric segments index into arrays.
func (p payload) lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if !present(cur) {
		return nil, false
	}
	return cur, true
}

// present reports whether a raw value carries anything before coercion.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

// field is one candidate location of a value and the conversion that
// brings it into canonical units.
type field struct {
	path    string
	convert func(float64) float64
}

func at(path string) field { return field{path: path} }

func conv(path string, fn func(float64) float64) field {
	return field{path: path, convert: fn}
}

// number returns the first present candidate, coerced to a number.
// Absent or unparseable values resolve to 0; the bool reports presence.
func (p payload) number(fields ...field) (float64, bool) {
	for _, f := range fields {
		v, ok := p.lookup(f.path)
		if !ok {
			continue
		}
		n := coerceNumber(v)
		if f.convert != nil {
			n = f.convert(n)
		}
		return n, true
	}
	return 0, false
}

// optionalNumber is number for fields that may be missing from a reading.
func (p payload) optionalNumber(fields ...field) *float64 {
	n, ok := p.number(fields...)
	if !ok {
		return nil
	}
	return &n
}

// text returns the first present candidate rendered as a string.
func (p payload) text(paths ...string) string {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

// list returns the first candidate that is a non-empty array.
func (p payload) list(paths ...string) ([]any, bool) {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		if items, ok := v.([]any); ok && len(items) > 0 {
			return items, true
		}
	}
	return nil, false
}

func coerceNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		return 0
	case string:
		n, err := strconv.ParseFloat(common.KeepNumeric(t), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
