// Package retrieval implements the C6 Retrieval component: semantic,
// lexical, and hybrid search scoped to (project, collection, filters),
// returning ranked SearchResult hits (spec §4.6).
package retrieval

import "time"

// SearchType names which of the three C6 operations produced a result set.
type SearchType string

const (
	SearchTypeSemantic SearchType = "semantic"
	SearchTypeLexical  SearchType = "lexical"
	SearchTypeHybrid   SearchType = "hybrid"
)

// Request is the tenant-scoped query shared by all three operations.
type Request struct {
	ProjectID    string
	CollectionID string
	Query        string
	Limit        int
	MinScore     float64
	Filters      map[string]any
}

// SearchResult is one ranked hit, joined back to its FileDocument.
type SearchResult struct {
	DocumentID      string
	FileID          *string
	CollectionID    string
	RelevanceScore  float64
	ContentPreview  string
	DocumentTitle   string
	ContentType     string
	ChunkIndex      int
	PageNumber      int
	SectionTitle    string
	Tags            map[string]any
	CreatedAt       time.Time
}

// SearchMetadata describes how a result set was produced.
type SearchMetadata struct {
	Query            string
	TotalResults     int
	ReturnedResults  int
	SearchTimeMs     int64
	FiltersApplied   map[string]any
	SearchType       SearchType
}

const contentPreviewMaxLen = 200

func preview(content string) string {
	r := []rune(content)
	if len(r) <= contentPreviewMaxLen {
		return content
	}
	return string(r[:contentPreviewMaxLen])
}
