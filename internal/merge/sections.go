package merge

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
)

// SectionSource pairs a section with the document it belongs to, so the
// section-level merge can compare documents' authority/recency.
type SectionSource struct {
	Section  model.Section
	Document model.Document
}

// MergedSection is one section of the consolidated output: a chosen base
// (or base plus appended non-duplicative paragraphs, under merge_all) and
// the list of documents that contributed to it.
type MergedSection struct {
	Header  string
	Content string
	Sources []uuid.UUID
}

// MergeSections groups sections by normalized header across every source
// document, picks a base per group (highest-authority, else newest), and
// for merge_all appends non-duplicative paragraphs from the other sources
// in the group. Groups are emitted in the order their header was first
// seen across the (ordered) source documents.
func MergeSections(sources []SectionSource, strategy model.MergeStrategyType, authorityOrder []uuid.UUID) []MergedSection {
	type group struct {
		header string
		items  []SectionSource
	}
	order := make([]string, 0)
	groups := make(map[string]*group)
	for _, s := range sources {
		key := model.NormalizeMention(s.Section.Header)
		g, ok := groups[key]
		if !ok {
			g = &group{header: s.Section.Header}
			groups[key] = g
			order = append(order, key)
		}
		g.items = append(g.items, s)
	}

	out := make([]MergedSection, 0, len(order))
	for _, key := range order {
		g := groups[key]
		base := pickSectionBase(g.items, authorityOrder)
		merged := MergedSection{
			Header:  base.Section.Header,
			Content: base.Section.Content,
			Sources: []uuid.UUID{base.Document.ID},
		}
		if strategy == model.MergeAll {
			merged.Content, merged.Sources = appendNonDuplicative(merged, g.items)
		}
		out = append(out, merged)
	}
	return out
}

// pickSectionBase chooses the highest-authority section in the group,
// falling back to the newest when authority ranks tie.
func pickSectionBase(items []SectionSource, authorityOrder []uuid.UUID) SectionSource {
	best := items[0]
	for _, candidate := range items[1:] {
		br, cr := authorityRank(best.Document, authorityOrder), authorityRank(candidate.Document, authorityOrder)
		switch {
		case cr < br:
			best = candidate
		case cr == br && recencyOf(candidate.Document).After(recencyOf(best.Document)):
			best = candidate
		}
	}
	return best
}

// appendNonDuplicative adds paragraphs from every non-base source in the
// group that aren't already present (by exact paragraph text) in the
// accumulated content, recording each contributor in Sources.
func appendNonDuplicative(base MergedSection, items []SectionSource) (string, []uuid.UUID) {
	seenDocs := map[uuid.UUID]bool{base.Sources[0]: true}
	seenParagraphs := make(map[string]bool)
	for _, p := range splitParagraphs(base.Content) {
		seenParagraphs[p] = true
	}

	content := base.Content
	sources := append([]uuid.UUID{}, base.Sources...)
	for _, item := range items {
		if seenDocs[item.Document.ID] {
			continue
		}
		added := false
		for _, p := range splitParagraphs(item.Section.Content) {
			if seenParagraphs[p] {
				continue
			}
			seenParagraphs[p] = true
			content += "\n\n" + p
			added = true
		}
		if added {
			seenDocs[item.Document.ID] = true
			sources = append(sources, item.Document.ID)
		}
	}
	return content, sources
}

// splitParagraphs splits text on blank lines, trimming each paragraph.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, block := range strings.Split(text, "\n\n") {
		if p := strings.TrimSpace(block); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// SortByHeader is a helper for deterministic test assertions; production
// callers rely on MergeSections' first-seen ordering instead.
func SortByHeader(sections []MergedSection) {
	sort.Slice(sections, func(i, j int) bool { return sections[i].Header < sections[j].Header })
}
