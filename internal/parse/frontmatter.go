package parse

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veritas-labs/veritas/internal/model"
)

const frontmatterDelim = "---"

// extractFrontmatter strips a leading YAML frontmatter block from markdown
// or YAML input, returning the remaining body and the decoded mapping. JSON
// and plain text never carry frontmatter.
func extractFrontmatter(raw []byte, format model.Format) (string, map[string]any, error) {
	text := string(raw)
	if format != model.FormatMarkdown && format != model.FormatYAML {
		return text, map[string]any{}, nil
	}

	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return text, map[string]any{}, nil
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			block := strings.Join(lines[1:i], "\n")
			var fm map[string]any
			if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
				return "", nil, fmt.Errorf("%w: frontmatter: %s", ErrMalformed, err)
			}
			if fm == nil {
				fm = map[string]any{}
			}
			body := strings.Join(lines[i+1:], "\n")
			return strings.TrimPrefix(body, "\n"), fm, nil
		}
	}

	// Opening delimiter with no closing one: treat the whole thing as body.
	return text, map[string]any{}, nil
}
