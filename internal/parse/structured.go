package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// splitStructured sections a JSON or YAML document by its top-level object
// keys: one section per key, header is the key name, content is that key's
// value re-rendered in the source format. Non-object top-level values
// (arrays, scalars) produce a single section with an empty header.
func splitStructured(body string, isJSON bool) ([]rawSection, error) {
	var top map[string]any
	var err error
	if isJSON {
		err = json.Unmarshal([]byte(body), &top)
	} else {
		err = yaml.Unmarshal([]byte(body), &top)
	}
	if err != nil {
		return singleStructuredSection(body, isJSON)
	}
	if top == nil {
		return singleStructuredSection(body, isJSON)
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := strings.Count(body, "\n") + 1
	sections := make([]rawSection, 0, len(keys))
	for i, k := range keys {
		rendered, err := renderValue(top[k], isJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %s", ErrMalformed, k, err)
		}
		sections = append(sections, rawSection{
			header:    k,
			content:   rendered,
			level:     1,
			startLine: 1,
			endLine:   lines,
		})
		_ = i
	}
	return sections, nil
}

func singleStructuredSection(body string, isJSON bool) ([]rawSection, error) {
	// Validate it at least decodes as *something* structured; a genuinely
	// malformed payload fails here rather than silently becoming text.
	var v any
	var err error
	if isJSON {
		err = json.Unmarshal([]byte(body), &v)
	} else {
		err = yaml.Unmarshal([]byte(body), &v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	lines := strings.Count(body, "\n") + 1
	return []rawSection{{
		header:    "",
		content:   strings.TrimRight(body, "\n"),
		level:     0,
		startLine: 1,
		endLine:   lines,
	}}, nil
}

func renderValue(v any, isJSON bool) (string, error) {
	if isJSON {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	}
	b, err := yaml.Marshal(v)
	return strings.TrimRight(string(b), "\n"), err
}
