package ai

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Entities is a bag of values extracted from an utterance. Values follow
// JSON decoding: numbers are float64, lists are []any.
type Entities map[string]any

// Merge copies every key of other into e, replacing existing values
func (e Entities) Merge(other map[string]any) {
	for k, v := range other {
		e[k] = v
	}
}

// Float returns a numeric value. Numeric strings such as "12.5 LPA" are
// accepted; ok is false when the key is absent, null or not a number.
func (e Entities) Float(key string) (float64, bool) {
	switch v := e[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		return leadingNumber(v)
	}
	return 0, false
}

// Int returns a numeric value truncated to an integer
func (e Entities) Int(key string) (int, bool) {
	f, ok := e.Float(key)
	return int(f), ok
}

// Bool returns a boolean value; ok is false when the value is absent or unclear
func (e Entities) Bool(key string) (value, ok bool) {
	switch v := e[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// String returns a string value, or "" when absent
func (e Entities) String(key string) string {
	switch v := e[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Strings returns a list of strings; a single string becomes a one element list
func (e Entities) Strings(key string) []string {
	switch v := e[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) != "" {
			return []string{strings.TrimSpace(v)}
		}
	}
	return nil
}

// Int64s returns a list of integer ids
func (e Entities) Int64s(key string) []int64 {
	var out []int64
	switch v := e[key].(type) {
	case []int64:
		return v
	case []any:
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, int64(n))
			case int64:
				out = append(out, n)
			case int:
				out = append(out, int64(n))
			}
		}
	}
	return out
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func leadingNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}

var (
	ctcPattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:LPA|lakhs?)`)
	noticePattern = regexp.MustCompile(`(?i)(\d+)\s*(?:days?|weeks?|months?)`)
)

// ExtractCTC finds the first "<n> LPA" or "<n> lakhs" amount in text
func ExtractCTC(text string) (float64, bool) {
	m := ctcPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	return f, err == nil
}

// ExtractCTCs returns every salary amount in text in order of appearance
func ExtractCTCs(text string) []float64 {
	var out []float64
	for _, m := range ctcPattern.FindAllStringSubmatch(text, -1) {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// ExtractNotice finds a notice period such as "30 days" or "2 months" in text
func ExtractNotice(text string) string {
	return noticePattern.FindString(text)
}
