// Package parse normalizes raw document bytes into a section tree with
// stable section identities, independent of source format.
package parse

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
)

// ErrMalformed is returned when structured input (JSON/YAML) cannot be
// decoded.
var ErrMalformed = errors.New("parse: malformed structured input")

// Result is a parsed document: sections plus the derived title,
// frontmatter, and content hash the caller assembles into a model.Document.
type Result struct {
	Title       string
	Frontmatter map[string]any
	ContentHash string
	Sections    []model.Section
}

// Document parses raw bytes of the given format into sections, deriving a
// title and content hash. sourcePath is used only as a title fallback when
// no heading is found.
func Document(sourcePath string, raw []byte, format model.Format) (Result, error) {
	body, frontmatter, err := extractFrontmatter(raw, format)
	if err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(body) == "" {
		return Result{
			Title:       titleFromPath(sourcePath),
			Frontmatter: frontmatter,
			ContentHash: hashContent(body),
			Sections:    nil,
		}, nil
	}

	var sections []rawSection
	switch format {
	case model.FormatMarkdown:
		sections, err = splitMarkdown(body)
	case model.FormatJSON:
		sections, err = splitStructured(body, true)
	case model.FormatYAML:
		sections, err = splitStructured(body, false)
	default:
		sections, err = splitText(body)
	}
	if err != nil {
		return Result{}, err
	}

	title := titleFromSections(sections)
	if title == "" {
		title = titleFromPath(sourcePath)
	}

	modelSections := make([]model.Section, len(sections))
	for i, s := range sections {
		modelSections[i] = model.Section{
			ID:           uuid.New(),
			Header:       s.header,
			Content:      s.content,
			Level:        s.level,
			SectionOrder: i,
			StartLine:    s.startLine,
			EndLine:      s.endLine,
		}
	}

	return Result{
		Title:       title,
		Frontmatter: frontmatter,
		ContentHash: hashContent(body),
		Sections:    modelSections,
	}, nil
}

// rawSection is the format-agnostic intermediate shape every splitter
// produces before section IDs are minted.
type rawSection struct {
	header    string
	content   string
	level     int
	startLine int
	endLine   int
}

func hashContent(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func titleFromPath(sourcePath string) string {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

func titleFromSections(sections []rawSection) string {
	for _, s := range sections {
		if s.level == 1 && s.header != "" {
			return s.header
		}
	}
	return ""
}

// DetectFormat sniffs a format from a source path's extension, falling back
// to text. Callers with a declared format should skip this.
func DetectFormat(sourcePath string) model.Format {
	switch strings.ToLower(filepath.Ext(sourcePath)) {
	case ".md", ".markdown":
		return model.FormatMarkdown
	case ".json":
		return model.FormatJSON
	case ".yaml", ".yml":
		return model.FormatYAML
	default:
		return model.FormatText
	}
}
