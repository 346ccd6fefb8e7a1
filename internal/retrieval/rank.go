package retrieval

import "sort"

// sortAndLimit orders results by score desc, ties broken by created_at
// desc, applies min_score as a pre-limit filter, then truncates to limit
// (spec §4.6: "Min-score filtering is applied before limiting.").
func sortAndLimit(results []SearchResult, minScore float64, limit int) []SearchResult {
	filtered := results[:0:0]
	for _, r := range results {
		if r.RelevanceScore >= minScore {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].RelevanceScore != filtered[j].RelevanceScore {
			return filtered[i].RelevanceScore > filtered[j].RelevanceScore
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// rrfFuse combines two independently-ranked candidate lists into one
// fused ranking via reciprocal-rank fusion: score(doc) = Σ 1/(k + rank)
// over every list the document appears in, rank starting at 1 (spec §4.2
// "rrf_k = 60, fetch_top_k = 20"). Documents present in both lists get
// the sum of both contributions, which is what lets hybrid search
// outrank a lexical-only collision (spec §9 worked example).
func rrfFuse(k int, lists ...[]SearchResult) []SearchResult {
	if k <= 0 {
		k = 60
	}
	scores := make(map[string]float64)
	byID := make(map[string]SearchResult)

	for _, list := range lists {
		for rank, r := range list {
			scores[r.DocumentID] += 1.0 / float64(k+rank+1)
			if _, ok := byID[r.DocumentID]; !ok {
				byID[r.DocumentID] = r
			}
		}
	}

	fused := make([]SearchResult, 0, len(byID))
	for id, r := range byID {
		r.RelevanceScore = scores[id]
		fused = append(fused, r)
	}
	return fused
}
