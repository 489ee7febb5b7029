package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas/internal/model"
)

func TestDocumentMarkdownSections(t *testing.T) {
	body := "# Title\n\nIntro paragraph.\n\n## Section A\n\nContent A.\n\n## Section B\n\nContent B.\n"
	res, err := Document("docs/guide.md", []byte(body), model.FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, "Title", res.Title)
	require.Len(t, res.Sections, 3)
	assert.Equal(t, "Title", res.Sections[0].Header)
	assert.Equal(t, "Section A", res.Sections[1].Header)
	assert.Equal(t, "Section B", res.Sections[2].Header)
	assert.Equal(t, 0, res.Sections[0].SectionOrder)
	assert.Equal(t, 1, res.Sections[1].SectionOrder)
}

func TestDocumentMarkdownFrontmatter(t *testing.T) {
	body := "---\nauthor: jane\nversion: 2\n---\n# Title\n\nbody text\n"
	res, err := Document("x.md", []byte(body), model.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "jane", res.Frontmatter["author"])
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Title", res.Sections[0].Header)
}

func TestDocumentTitleFallsBackToPath(t *testing.T) {
	body := "just some text with no heading\n"
	res, err := Document("notes/meeting-2026-01.md", []byte(body), model.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "meeting-2026-01", res.Title)
}

func TestDocumentWhitespaceOnlyIsZeroSections(t *testing.T) {
	res, err := Document("empty.md", []byte("   \n\n  \n"), model.FormatMarkdown)
	require.NoError(t, err)
	assert.Empty(t, res.Sections)
}

func TestDocumentContentHashStableAcrossRuns(t *testing.T) {
	body := "# A\n\nsame body\n"
	r1, err := Document("a.md", []byte(body), model.FormatMarkdown)
	require.NoError(t, err)
	r2, err := Document("a.md", []byte(body), model.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, r1.ContentHash, r2.ContentHash)
}

func TestDocumentJSONSectionsByKey(t *testing.T) {
	body := `{"alpha": {"x": 1}, "beta": [1,2,3]}`
	res, err := Document("data.json", []byte(body), model.FormatJSON)
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)
	assert.Equal(t, "alpha", res.Sections[0].Header)
	assert.Equal(t, "beta", res.Sections[1].Header)
}

func TestDocumentJSONMalformedFails(t *testing.T) {
	_, err := Document("bad.json", []byte(`{"alpha": `), model.FormatJSON)
	require.Error(t, err)
}

func TestDocumentYAMLSectionsByKey(t *testing.T) {
	body := "alpha:\n  x: 1\nbeta:\n  - 1\n  - 2\n"
	res, err := Document("data.yaml", []byte(body), model.FormatYAML)
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)
}

func TestDocumentTextParagraphs(t *testing.T) {
	body := "first paragraph line one\nline two\n\nsecond paragraph\n"
	res, err := Document("notes.txt", []byte(body), model.FormatText)
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)
	assert.Contains(t, res.Sections[0].Content, "first paragraph")
	assert.Contains(t, res.Sections[1].Content, "second paragraph")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, model.FormatMarkdown, DetectFormat("README.md"))
	assert.Equal(t, model.FormatJSON, DetectFormat("data.json"))
	assert.Equal(t, model.FormatYAML, DetectFormat("config.yaml"))
	assert.Equal(t, model.FormatText, DetectFormat("notes.txt"))
}
