package parse

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// splitMarkdown sections a markdown body on top-of-tree headings. The
// nontrivial depth is the shallowest heading level used by more than one
// heading (a lone title heading is trivial), or the first heading's level
// when no level repeats; headings at or above that depth start new
// sections, deeper headings stay inside their enclosing section's content.
func splitMarkdown(body string) ([]rawSection, error) {
	src := []byte(body)
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	lineOf := newLineIndex(body)

	var headings []*ast.Heading
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, h)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if len(headings) == 0 {
		return []rawSection{{
			header:    "",
			content:   strings.TrimRight(body, "\n"),
			level:     0,
			startLine: 1,
			endLine:   lineOf.lineCount,
		}}, nil
	}

	levelCounts := make(map[int]int)
	for _, h := range headings {
		levelCounts[h.Level]++
	}
	splitLevel := headings[0].Level
	for level := 1; level <= 6; level++ {
		if levelCounts[level] > 1 {
			splitLevel = level
			break
		}
	}
	var boundaries []*ast.Heading
	for _, h := range headings {
		if h.Level <= splitLevel {
			boundaries = append(boundaries, h)
		}
	}

	sections := make([]rawSection, 0, len(boundaries))
	for i, h := range boundaries {
		startOffset := headingOffset(h, src)
		startLine := lineOf.lineAt(startOffset)

		var endOffset int
		if i+1 < len(boundaries) {
			endOffset = headingOffset(boundaries[i+1], src)
		} else {
			endOffset = len(src)
		}
		endLine := lineOf.lineAt(endOffset)
		if endOffset > 0 && endOffset <= len(src) && (endOffset == len(src) || src[endOffset-1] == '\n') {
			endLine--
		}
		if endLine < startLine {
			endLine = startLine
		}

		content := strings.TrimRight(string(src[startOffset:endOffset]), "\n")
		sections = append(sections, rawSection{
			header:    headingText(h, src),
			content:   content,
			level:     h.Level,
			startLine: startLine,
			endLine:   endLine,
		})
	}
	return sections, nil
}

func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return strings.TrimSpace(b.String())
}

// headingOffset returns the byte offset where the heading's line begins, so
// the section content includes the heading markup itself.
func headingOffset(h *ast.Heading, src []byte) int {
	if h.Lines().Len() > 0 {
		start := h.Lines().At(0).Start
		for start > 0 && src[start-1] != '\n' {
			start--
		}
		return start
	}
	return 0
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	offsets   []int
	lineCount int
}

func newLineIndex(body string) *lineIndex {
	offsets := []int{0}
	for i, r := range body {
		if r == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return &lineIndex{offsets: offsets, lineCount: len(offsets)}
}

func (idx *lineIndex) lineAt(offset int) int {
	lo, hi := 0, len(idx.offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if idx.offsets[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}
