// Package prompt renders stage templates under a strict identifier-only
// substitution contract: `{name}` placeholders, `{{`/`}}` as literal
// braces, and nothing else. Attribute access, indexing, and format specs
// are rejected rather than silently tolerated.
package prompt

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// RenderError wraps a template read or encoding failure.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// UnsupportedPlaceholderError reports a placeholder that is not a simple
// identifier.
type UnsupportedPlaceholderError struct {
	Placeholder string
}

func (e *UnsupportedPlaceholderError) Error() string {
	return fmt.Sprintf("unsupported placeholder %q: only simple identifiers are allowed", e.Placeholder)
}

// MissingVariablesError reports required identifiers absent from the
// provided variable set, sorted for stable messages.
type MissingVariablesError struct {
	Missing []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing variables: %s", strings.Join(e.Missing, ", "))
}

// Placeholders parses tmpl and returns the set of referenced identifiers
// in first-seen order.
func Placeholders(tmpl string) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	err := scan(tmpl, func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}, nil)
	return names, err
}

// Render substitutes vars into tmpl. Every referenced identifier must be
// provided; extra variables are tolerated.
func Render(tmpl string, vars map[string]any) (string, error) {
	if !utf8.ValidString(tmpl) {
		return "", &RenderError{Template: "<inline>", Err: fmt.Errorf("template is not valid UTF-8")}
	}

	required, err := Placeholders(tmpl)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, name := range required {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingVariablesError{Missing: missing}
	}

	var out strings.Builder
	out.Grow(len(tmpl))
	if err := scan(tmpl, nil, func(name string, literal string) {
		if name != "" {
			out.WriteString(formatValue(vars[name]))
		} else {
			out.WriteString(literal)
		}
	}); err != nil {
		return "", err
	}
	return out.String(), nil
}

// RenderFile reads the template at path and renders it.
func RenderFile(path string, vars map[string]any) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &RenderError{Template: path, Err: err}
	}
	out, err := Render(string(data), vars)
	if err != nil {
		var re *RenderError
		if ok := asRenderError(err, &re); ok && re.Template == "<inline>" {
			return "", &RenderError{Template: path, Err: re.Err}
		}
		return "", err
	}
	return out, nil
}

func asRenderError(err error, target **RenderError) bool {
	re, ok := err.(*RenderError)
	if ok {
		*target = re
	}
	return ok
}

// scan walks tmpl, invoking onName for each placeholder identifier and
// emit for each output piece (either a placeholder name or a literal run).
// Either callback may be nil.
func scan(tmpl string, onName func(string), emit func(name, literal string)) error {
	emitLiteral := func(s string) {
		if emit != nil && s != "" {
			emit("", s)
		}
	}

	i := 0
	start := 0
	for i < len(tmpl) {
		switch tmpl[i] {
		case '{':
			emitLiteral(tmpl[start:i])
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				emitLiteral("{")
				i += 2
				start = i
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return &UnsupportedPlaceholderError{Placeholder: tmpl[i:]}
			}
			name := tmpl[i+1 : i+1+end]
			if !isIdentifier(name) {
				return &UnsupportedPlaceholderError{Placeholder: "{" + name + "}"}
			}
			if onName != nil {
				onName(name)
			}
			if emit != nil {
				emit(name, "")
			}
			i += end + 2
			start = i
		case '}':
			emitLiteral(tmpl[start:i])
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				emitLiteral("}")
				i += 2
				start = i
				continue
			}
			return &UnsupportedPlaceholderError{Placeholder: "}"}
		default:
			i++
		}
	}
	emitLiteral(tmpl[start:])
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// formatValue renders supported scalar kinds by their natural textual form.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
