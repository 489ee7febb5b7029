package parse

import "strings"

// splitText sections plain text on blank-line-delimited paragraphs. Headers
// are always empty; level is always 0.
func splitText(body string) ([]rawSection, error) {
	lines := strings.Split(body, "\n")

	var sections []rawSection
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			if start >= 0 {
				sections = append(sections, textSection(lines, start, i-1))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		sections = append(sections, textSection(lines, start, len(lines)-1))
	}
	return sections, nil
}

func textSection(lines []string, start, end int) rawSection {
	content := strings.TrimRight(strings.Join(lines[start:end+1], "\n"), "\n")
	return rawSection{
		header:    "",
		content:   content,
		level:     0,
		startLine: start + 1,
		endLine:   end + 1,
	}
}
