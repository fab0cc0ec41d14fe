// Package jsonx recovers JSON objects from LLM responses. Recovery is
// bounded and tiered: direct parse, fenced-block extraction, first-brace
// to last-brace slicing, and (for callers that opt in) a tolerant repair
// of unescaped quotes inside string values.
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

// DecodeError reports that no recovery tier produced a valid JSON object.
type DecodeError struct {
	Err     error
	Snippet string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("no JSON object found in response: %v\nraw text (first 500 chars): %s", e.Err, e.Snippet)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode extracts a JSON object from text using the non-destructive tiers
// only: direct parse, fenced block, first-{ to last-} slice.
func Decode(text string) (map[string]any, error) {
	doc, _, err := decode(text, false)
	return doc, err
}

// DecodeTolerant adds the unescaped-quote repair tier. The second return
// reports whether the repair tier produced the parse, so callers can log
// a repaired-response marker.
func DecodeTolerant(text string) (map[string]any, bool, error) {
	return decode(text, true)
}

func decode(text string, tolerant bool) (map[string]any, bool, error) {
	candidates := []string{strings.TrimSpace(text)}
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if sliced := SliceObject(text); sliced != "" {
		candidates = append(candidates, sliced)
	}

	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(c), &doc); err == nil {
			return doc, false, nil
		} else {
			lastErr = err
		}
	}

	if tolerant {
		for _, c := range candidates {
			if c == "" {
				continue
			}
			repaired := RepairUnescapedQuotes(c)
			if repaired == c {
				continue
			}
			var doc map[string]any
			if err := json.Unmarshal([]byte(repaired), &doc); err == nil {
				return doc, true, nil
			} else {
				lastErr = err
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("response contains no braces")
	}
	return nil, false, &DecodeError{Err: lastErr, Snippet: truncate(text, 500)}
}

// SliceObject returns the span between the first '{' and the last '}'
// of text, or "" when no such span exists.
func SliceObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return ""
}

// RepairUnescapedQuotes escapes a '"' occurring inside a string value
// unless it is followed (after optional whitespace) by one of `:,}]` or
// the end of input, in which case it is taken as the closing quote. This
// is a scanning state machine, not a parser; it exists to rescue LLM
// output that forgot to escape inner quotes.
func RepairUnescapedQuotes(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			out.WriteByte(c)
			continue
		}
		if escaped {
			escaped = false
			out.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			escaped = true
			out.WriteByte(c)
		case '"':
			if closesString(s, i+1) {
				inString = false
				out.WriteByte(c)
			} else {
				out.WriteString(`\"`)
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// closesString reports whether position i (just past a quote) looks like
// the end of a JSON string value: optional whitespace then one of `:,}]`
// or end of input.
func closesString(s string, i int) bool {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		case ':', ',', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
