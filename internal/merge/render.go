package merge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/veritas-labs/veritas/internal/model"
)

// Render produces the consolidated document body in the requested format.
// When includeProvenance is true, markdown output appends an HTML-comment
// source list after each section and structured output attaches a
// "sources" field per section. Sections are sorted by header for json/yaml
// output to match the structured parser's alphabetical sectioning, so the
// rendered document round-trips through it.
func Render(format model.Format, title string, sections []MergedSection, includeProvenance bool) (string, error) {
	switch format {
	case model.FormatJSON:
		return renderStructured(sections, includeProvenance, json.MarshalIndent)
	case model.FormatYAML:
		return renderStructured(sections, includeProvenance, yamlMarshalIndent)
	case model.FormatMarkdown, "":
		return renderMarkdown(title, sections, includeProvenance), nil
	default:
		return "", fmt.Errorf("merge: unsupported output format %q", format)
	}
}

func renderMarkdown(title string, sections []MergedSection, includeProvenance bool) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("# " + title + "\n\n")
	}
	for _, s := range sections {
		b.WriteString("## " + s.Header + "\n\n")
		b.WriteString(strings.TrimRight(s.Content, "\n"))
		b.WriteString("\n")
		if includeProvenance {
			b.WriteString("\n<!-- sources: " + joinSources(s.Sources) + " -->\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

type marshalIndentFunc func(v any, prefix, indent string) ([]byte, error)

func yamlMarshalIndent(v any, _, _ string) ([]byte, error) {
	return yaml.Marshal(v)
}

// structuredSection mirrors one top-level key of the rendered JSON/YAML
// document body.
type structuredSection struct {
	Content string      `json:"content" yaml:"content"`
	Sources []uuid.UUID `json:"sources,omitempty" yaml:"sources,omitempty"`
}

func renderStructured(sections []MergedSection, includeProvenance bool, marshal marshalIndentFunc) (string, error) {
	sorted := append([]MergedSection{}, sections...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Header < sorted[j].Header })

	body := make(map[string]structuredSection, len(sorted))
	for _, s := range sorted {
		entry := structuredSection{Content: s.Content}
		if includeProvenance {
			entry.Sources = s.Sources
		}
		body[s.Header] = entry
	}
	out, err := marshal(body, "", "  ")
	if err != nil {
		return "", fmt.Errorf("merge: render structured output: %w", err)
	}
	return string(out), nil
}

func joinSources(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
