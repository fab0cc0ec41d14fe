package stages

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// ErrNoFrontmatter reports a section response without a leading YAML
// frontmatter block.
var ErrNoFrontmatter = fmt.Errorf("missing valid YAML frontmatter")

// splitFrontmatter separates a Markdown document into its YAML
// frontmatter mapping and body. The document must open with a `---` line
// and contain a closing `---` line.
func splitFrontmatter(doc string) (map[string]any, string, error) {
	trimmed := strings.TrimLeft(doc, " \t\r\n")
	if !strings.HasPrefix(trimmed, frontmatterDelimiter+"\n") &&
		trimmed != frontmatterDelimiter {
		return nil, "", ErrNoFrontmatter
	}
	rest := strings.TrimPrefix(trimmed, frontmatterDelimiter+"\n")

	end := strings.Index(rest, "\n"+frontmatterDelimiter)
	if end < 0 {
		return nil, "", ErrNoFrontmatter
	}
	rawYAML := rest[:end]
	body := rest[end+len("\n"+frontmatterDelimiter):]
	body = strings.TrimPrefix(body, "\n")

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rawYAML), &fm); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoFrontmatter, err)
	}
	if fm == nil {
		return nil, "", ErrNoFrontmatter
	}
	return fm, body, nil
}

// renderFrontmatter reconstructs a section file with canonical
// frontmatter followed by the body.
func renderFrontmatter(fm map[string]any, body string) (string, error) {
	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString(frontmatterDelimiter)
	b.WriteByte('\n')
	b.Write(data)
	b.WriteString(frontmatterDelimiter)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteByte('\n')
	return b.String(), nil
}

// stripFrontmatter returns just the body of a section file, tolerating
// files that never had frontmatter.
func stripFrontmatter(doc string) string {
	if _, body, err := splitFrontmatter(doc); err == nil {
		return body
	}
	return doc
}
