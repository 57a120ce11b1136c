package searcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/devlog-mcp/internal/extract"
	"github.com/dshills/devlog-mcp/internal/storage"
	"github.com/dshills/devlog-mcp/pkg/types"
)

// candidateFromMeta builds the strategy-independent part of a candidate.
func candidateFromMeta(meta storage.CommitMeta, matchType types.MatchType, score float64) types.Candidate {
	return types.Candidate{
		CommitID:    meta.ID,
		CommitHash:  meta.Hash,
		ShortHash:   meta.ShortHash,
		RepoName:    meta.RepoName,
		Message:     meta.Message,
		Author:      meta.Author,
		CommittedAt: meta.CommittedAt,
		MatchType:   matchType,
		Score:       score,
	}
}

// keywordCandidates matches the query against commit messages and file
// paths. The weakest evidence tier.
func (s *Searcher) keywordCandidates(ctx context.Context, query string, filters *storage.SearchFilters, limit int) ([]types.Candidate, error) {
	metas, err := s.store.SearchCommitMeta(ctx, query, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword strategy: %w", err)
	}

	candidates := make([]types.Candidate, 0, len(metas))
	for _, meta := range metas {
		cand := candidateFromMeta(meta, types.MatchKeyword, ScoreKeyword)
		files, err := s.store.ListFilesByCommit(ctx, meta.ID)
		if err != nil {
			return nil, fmt.Errorf("keyword strategy: %w", err)
		}
		cand.Files = files
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// codeCandidates matches the query against stored post-change code and diff
// text, grouping file-level hits by commit.
func (s *Searcher) codeCandidates(ctx context.Context, query string, filters *storage.SearchFilters, limit int) ([]types.Candidate, error) {
	hits, err := s.store.SearchCodeContent(ctx, query, filters, limit*3)
	if err != nil {
		return nil, fmt.Errorf("code strategy: %w", err)
	}

	candidates := make([]types.Candidate, 0)
	byCommit := make(map[int64]int) // commit ID -> index in candidates

	for _, hit := range hits {
		text := hit.CodeAfter
		if text == "" {
			text = hit.DiffText
		}
		snippet := extractSnippet(text, query)
		file := types.FileMatch{Path: hit.FilePath, Language: hit.Language}

		if i, ok := byCommit[hit.Commit.ID]; ok {
			candidates[i].Files = appendFile(candidates[i].Files, file)
			candidates[i].Snippets = append(candidates[i].Snippets, snippet)
			continue
		}
		if len(candidates) >= limit {
			continue
		}

		cand := candidateFromMeta(hit.Commit, types.MatchCode, ScoreCode)
		cand.Files = []types.FileMatch{file}
		cand.Snippets = []string{snippet}
		byCommit[hit.Commit.ID] = len(candidates)
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// functionCandidates scans stored code for function/class names containing
// the identifier reduced from the query. Work is bounded: the scan stops
// once limit distinct commits have matched.
func (s *Searcher) functionCandidates(ctx context.Context, query string, filters *storage.SearchFilters, limit int) ([]types.Candidate, error) {
	name := strings.ToLower(ExtractFunctionName(query))
	if name == "" {
		return nil, nil
	}

	hits, err := s.store.ListChangesForFunctionScan(ctx, filters, types.StructuralScanLanguages(), limit*3)
	if err != nil {
		return nil, fmt.Errorf("function strategy: %w", err)
	}

	candidates := make([]types.Candidate, 0)
	seen := make(map[int64]bool)

	for _, hit := range hits {
		if len(candidates) >= limit {
			break
		}
		if seen[hit.Commit.ID] {
			continue
		}
		for _, span := range extract.Extract(hit.CodeAfter, hit.Language) {
			if !strings.Contains(strings.ToLower(span.Name), name) {
				continue
			}
			seen[hit.Commit.ID] = true
			cand := candidateFromMeta(hit.Commit, types.MatchFunction, ScoreFunction)
			cand.Files = []types.FileMatch{{Path: hit.FilePath, Language: hit.Language}}
			cand.Snippets = []string{truncate(span.Code, SnippetMaxChars)}
			candidates = append(candidates, cand)
			break
		}
	}
	return candidates, nil
}

// semanticCandidates delegates to the embedding index and scales the raw
// cosine similarity into the strategies' score range.
func (s *Searcher) semanticCandidates(ctx context.Context, query string, limit int) ([]types.Candidate, error) {
	matches, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic strategy: %w", err)
	}

	candidates := make([]types.Candidate, 0, len(matches))
	for _, m := range matches {
		cand := candidateFromMeta(m.Commit, types.MatchSemantic, m.Score*SemanticScale)
		files, err := s.store.ListFilesByCommit(ctx, m.Commit.ID)
		if err != nil {
			return nil, fmt.Errorf("semantic strategy: %w", err)
		}
		cand.Files = files
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// extractSnippet returns the window of SnippetContextLines around the first
// line containing the query (case-insensitive), or the first
// SnippetFallbackLines lines when the match spans a line boundary.
func extractSnippet(code, query string) string {
	if code == "" {
		return ""
	}

	lines := strings.Split(code, "\n")
	lower := strings.ToLower(query)

	for i, line := range lines {
		if lower != "" && strings.Contains(strings.ToLower(line), lower) {
			start := i - SnippetContextLines
			if start < 0 {
				start = 0
			}
			end := i + SnippetContextLines + 1
			if end > len(lines) {
				end = len(lines)
			}
			return strings.Join(lines[start:end], "\n")
		}
	}

	if len(lines) > SnippetFallbackLines {
		lines = lines[:SnippetFallbackLines]
	}
	return strings.Join(lines, "\n")
}

func appendFile(files []types.FileMatch, file types.FileMatch) []types.FileMatch {
	for _, f := range files {
		if f.Path == file.Path {
			return files
		}
	}
	return append(files, file)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
