package webhook

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Params holds intent parameters as decoded from JSON: strings, float64
// numbers, bools, lists and nested maps.
type Params map[string]interface{}

// String returns the parameter as a string. Non-string values are rendered
// as JSON; missing or null parameters yield "".
func (p Params) String(key string) string {
	val, ok := p[key]
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	if bytes, err := json.Marshal(val); err == nil {
		return string(bytes)
	}
	return ""
}

// Strings returns a list parameter. A single string is treated as a
// one-element list and non-string elements are skipped. Missing parameters
// yield nil.
func (p Params) Strings(key string) []string {
	switch val := p[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

// Int returns the parameter as an integer. Numbers are truncated toward
// zero; strings are parsed from their leading digits after optional
// whitespace and sign, so "3 bots" is 3 and "2.5" is 2. It reports false
// when no integer can be read, including numbers beyond ±2^53 and strings
// that overflow int.
func (p Params) Int(key string) (int, bool) {
	switch val := p[key].(type) {
	case float64:
		if math.IsNaN(val) || math.Abs(val) > maxExactFloat {
			return 0, false
		}
		return int(val), true
	case int:
		return val, true
	case string:
		return leadingInt(val)
	default:
		return 0, false
	}
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
