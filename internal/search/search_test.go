package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veritas-labs/veritas/internal/model"
)

// Compile-time assertions that QdrantIndex satisfies both extension points.
var (
	_ Searcher        = (*QdrantIndex)(nil)
	_ CandidateFinder = (*QdrantIndex)(nil)
)

func TestFiltersZeroValueMatchesEverything(t *testing.T) {
	var f Filters
	assert.Nil(t, f.DocumentTypes)
	assert.Nil(t, f.AuthorityMin)
}

func TestFiltersAuthorityMinPointer(t *testing.T) {
	min := 3
	f := Filters{AuthorityMin: &min}
	assert.Equal(t, 3, *f.AuthorityMin)
}

func TestFiltersDocumentTypes(t *testing.T) {
	f := Filters{DocumentTypes: []model.DocumentType{model.DocTypeSpec, model.DocTypeDecision}}
	assert.Len(t, f.DocumentTypes, 2)
	assert.Contains(t, f.DocumentTypes, model.DocTypeSpec)
}
