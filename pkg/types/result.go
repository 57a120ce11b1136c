package types

import "time"

// MatchType identifies which search strategy produced a match.
type MatchType string

const (
	MatchKeyword  MatchType = "keyword"
	MatchCode     MatchType = "code_content"
	MatchFunction MatchType = "function"
	MatchSemantic MatchType = "semantic"
)

// FileMatch is a file touched by a matching commit.
type FileMatch struct {
	Path       string
	ChangeKind string
	Language   string
	LinesAdded int
	LinesDel   int
}

// Candidate represents a strategy-scoped match for a commit, prior to
// deduplication. All four strategies share this output shape; Score is raw
// and strategy-consistent, not calibrated across strategies.
type Candidate struct {
	CommitID    int64
	CommitHash  string
	ShortHash   string
	RepoName    string
	Message     string
	Author      string
	CommittedAt time.Time
	MatchType   MatchType
	Score       float64
	Files       []FileMatch
	Snippets    []string
}

// SearchResult represents a single merged search result with relevance
// information. Results are constructed fresh per query and are immutable
// once returned.
type SearchResult struct {
	// Identification
	CommitID   int64
	CommitHash string
	ShortHash  string
	RepoName   string

	// Commit metadata
	Message     string
	Author      string
	CommittedAt time.Time

	// Scoring
	Score     float64   // Maximum score across contributing strategies
	MatchType MatchType // Strategy that contributed the maximum score
	Rank      int       // Position in result set (1-based)

	// Evidence
	Files    []FileMatch // Union across strategies, first-seen order
	Snippets []string    // Concatenated across strategies, not deduplicated
}

// Validate checks if the search result is valid.
func (sr *SearchResult) Validate() error {
	if sr.CommitID == 0 {
		return ErrInvalidCommitID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < 0 {
		return ErrInvalidScore
	}

	if sr.MatchType == "" {
		return ErrMissingMatchType
	}

	return nil
}
