package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortAndLimitOrdersByScoreThenCreatedAtDesc(t *testing.T) {
	now := time.Now()
	results := []SearchResult{
		{DocumentID: "a", RelevanceScore: 0.5, CreatedAt: now.Add(-time.Hour)},
		{DocumentID: "b", RelevanceScore: 0.9, CreatedAt: now.Add(-2 * time.Hour)},
		{DocumentID: "c", RelevanceScore: 0.9, CreatedAt: now}, // tie with b, newer wins
	}
	out := sortAndLimit(results, 0, 10)
	assert.Equal(t, []string{"c", "b", "a"}, ids(out))
}

func TestSortAndLimitAppliesMinScoreBeforeLimiting(t *testing.T) {
	results := []SearchResult{
		{DocumentID: "a", RelevanceScore: 0.9},
		{DocumentID: "b", RelevanceScore: 0.1},
		{DocumentID: "c", RelevanceScore: 0.8},
	}
	out := sortAndLimit(results, 0.5, 10)
	assert.Equal(t, []string{"a", "c"}, ids(out))
}

func TestSortAndLimitTruncatesAfterFiltering(t *testing.T) {
	results := []SearchResult{
		{DocumentID: "a", RelevanceScore: 0.9},
		{DocumentID: "b", RelevanceScore: 0.8},
		{DocumentID: "c", RelevanceScore: 0.7},
	}
	out := sortAndLimit(results, 0, 2)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}

// TestRRFFuseHybridOutranksKeywordCollision mirrors the spec's worked
// example: a chunk that is the top semantic hit but ranks behind a
// keyword-colliding chunk lexically should still come out ahead once
// fused, because it scores on both lists.
func TestRRFFuseHybridOutranksKeywordCollision(t *testing.T) {
	// A ("Install the Widget on port 8080") is the clear semantic match for
	// "how to install Widget" and retrieved nowhere else that matters. B
	// ("port is a nautical term") only surfaces because "port" is a keyword
	// collision in lexical search, topping that list despite being
	// semantically irrelevant.
	semantic := []SearchResult{
		{DocumentID: "install-widget", RelevanceScore: 0.95},
	}
	lexical := []SearchResult{
		{DocumentID: "nautical-port", RelevanceScore: 0.9},
		{DocumentID: "install-widget", RelevanceScore: 0.3},
	}

	fused := rrfFuse(60, semantic, lexical)
	sorted := sortAndLimit(fused, 0, 0)
	assert.Equal(t, "install-widget", sorted[0].DocumentID, "support from both lists must beat a lexical-only top hit")
}

func TestRRFFuseSumsContributionsAcrossLists(t *testing.T) {
	listA := []SearchResult{
		{DocumentID: "dual", RelevanceScore: 1},
		{DocumentID: "solo", RelevanceScore: 1},
	}
	listB := []SearchResult{
		{DocumentID: "dual", RelevanceScore: 1},
	}

	fused := rrfFuse(60, listA, listB)

	var dualScore, soloScore float64
	for _, r := range fused {
		switch r.DocumentID {
		case "dual":
			dualScore = r.RelevanceScore
		case "solo":
			soloScore = r.RelevanceScore
		}
	}
	assert.Greater(t, dualScore, soloScore, "a document present in both lists must outscore one present in only one")
}

func ids(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.DocumentID
	}
	return out
}
