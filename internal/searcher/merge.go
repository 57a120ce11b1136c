package searcher

import (
	"sort"

	"github.com/dshills/devlog-mcp/pkg/types"
)

// Merge deduplicates candidates from any number of strategies by commit
// identity and ranks the merged results.
//
// Per commit: the final score is the maximum across contributing strategies
// (so merging is commutative and idempotent in the score step), the match
// type is the one that contributed that maximum, files are unioned by path,
// and snippets are concatenated; different strategies surface different,
// non-interchangeable evidence.
func Merge(lists [][]types.Candidate, limit int) []types.SearchResult {
	merged := make(map[int64]*types.SearchResult)

	for _, list := range lists {
		for _, cand := range list {
			existing, ok := merged[cand.CommitID]
			if !ok {
				result := &types.SearchResult{
					CommitID:    cand.CommitID,
					CommitHash:  cand.CommitHash,
					ShortHash:   cand.ShortHash,
					RepoName:    cand.RepoName,
					Message:     cand.Message,
					Author:      cand.Author,
					CommittedAt: cand.CommittedAt,
					Score:       cand.Score,
					MatchType:   cand.MatchType,
				}
				result.Files = appendFiles(nil, cand.Files)
				result.Snippets = append(result.Snippets, cand.Snippets...)
				merged[cand.CommitID] = result
				continue
			}

			if cand.Score > existing.Score {
				existing.Score = cand.Score
				existing.MatchType = cand.MatchType
			}
			existing.Files = appendFiles(existing.Files, cand.Files)
			existing.Snippets = append(existing.Snippets, cand.Snippets...)
		}
	}

	results := make([]types.SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, *r)
	}

	// Score descending; ties break by commit timestamp descending, then by
	// commit ID for full reproducibility.
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		if !results[a].CommittedAt.Equal(results[b].CommittedAt) {
			return results[a].CommittedAt.After(results[b].CommittedAt)
		}
		return results[a].CommitID > results[b].CommitID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// appendFiles unions src into dst, de-duplicating by file path and
// preserving first-seen order.
func appendFiles(dst []types.FileMatch, src []types.FileMatch) []types.FileMatch {
	for _, f := range src {
		dst = appendFile(dst, f)
	}
	return dst
}
