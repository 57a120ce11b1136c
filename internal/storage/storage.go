package storage

import (
	"context"
	"time"

	"github.com/dshills/devlog-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying recorded commit
// history.
type Storage interface {
	// Repository operations
	CreateRepo(ctx context.Context, repo *Repo) error
	GetRepoByPath(ctx context.Context, path string) (*Repo, error)
	GetRepoByName(ctx context.Context, name string) (*Repo, error)
	ListRepos(ctx context.Context, activeOnly bool) ([]*Repo, error)
	DeactivateRepo(ctx context.Context, repoID int64) error
	TouchRepo(ctx context.Context, repoID int64, lastCommitAt time.Time) error

	// Commit operations
	InsertCommit(ctx context.Context, commit *Commit) (created bool, err error)
	GetCommitByHash(ctx context.Context, hashOrPrefix string) (*CommitMeta, error)
	InsertCodeChange(ctx context.Context, change *CodeChange) error
	ListChangesByCommit(ctx context.Context, commitID int64) ([]*CodeChange, error)
	ListFilesByCommit(ctx context.Context, commitID int64) ([]types.FileMatch, error)

	// Strategy queries
	SearchCommitMeta(ctx context.Context, query string, filters *SearchFilters, limit int) ([]CommitMeta, error)
	SearchCodeContent(ctx context.Context, query string, filters *SearchFilters, limit int) ([]ChangeHit, error)
	ListChangesForFunctionScan(ctx context.Context, filters *SearchFilters, languages []string, limit int) ([]ChangeHit, error)
	ListCommitVectors(ctx context.Context) ([]CommitVector, error)

	// Tag operations
	AddTag(ctx context.Context, hashOrPrefix, tag string) (added bool, err error)
	RemoveTag(ctx context.Context, hashOrPrefix, tag string) error
	ListTags(ctx context.Context, hashOrPrefix string) ([]string, error)
	SearchCommitsByTag(ctx context.Context, tag string, limit int) ([]CommitMeta, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, commitID int64) (*Embedding, error)
	ListCommitsWithoutEmbedding(ctx context.Context) ([]PendingCommit, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction covering the capture write path.
// Reads go through Storage directly; only capture needs atomicity.
type Tx interface {
	Commit() error
	Rollback() error

	InsertCommit(ctx context.Context, commit *Commit) (created bool, err error)
	InsertCodeChange(ctx context.Context, change *CodeChange) error
	TouchRepo(ctx context.Context, repoID int64, lastCommitAt time.Time) error
}

// Repo represents a tracked working copy. Untracking deactivates the row,
// it never deletes it.
type Repo struct {
	ID           int64
	Name         string
	Path         string
	TrackedSince time.Time
	LastCommitAt time.Time // Zero until the first capture
	CommitCount  int
	Active       bool
}

// Commit is an immutable historical fact captured from a repository.
// (RepoID, Hash) is unique; re-capture is a no-op.
type Commit struct {
	ID           int64
	RepoID       int64
	Hash         string
	ShortHash    string
	Message      string
	Author       string
	CommittedAt  time.Time
	Branch       string
	FilesChanged int
	Insertions   int
	Deletions    int
}

// CodeChange is one file touched by one commit. CodeBefore/CodeAfter may be
// absent (nil), e.g. for deletions and additions respectively.
type CodeChange struct {
	ID           int64
	CommitID     int64
	FilePath     string
	ChangeKind   string
	Language     string
	DiffText     string
	CodeBefore   *string
	CodeAfter    *string
	LinesAdded   int
	LinesRemoved int
}

// Embedding is the stored vector for one commit. At most one row per commit;
// upsert overwrites.
type Embedding struct {
	CommitID  int64
	Vector    []byte // Serialized float32 array, little-endian
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// CommitMeta is a commit joined with its repository, as returned by the
// strategy queries.
type CommitMeta struct {
	ID           int64
	Hash         string
	ShortHash    string
	Message      string
	Author       string
	CommittedAt  time.Time
	Branch       string
	FilesChanged int
	Insertions   int
	Deletions    int
	RepoName     string
	RepoPath     string
}

// ChangeHit is a code change joined with its commit metadata, as returned by
// the code-content and function-scan queries.
type ChangeHit struct {
	Commit    CommitMeta
	FilePath  string
	Language  string
	CodeAfter string
	DiffText  string
}

// CommitVector pairs a commit with its stored embedding vector.
type CommitVector struct {
	Commit CommitMeta
	Vector []byte
}

// PendingCommit is a commit lacking an embedding, with the comma-joined
// touched file paths used to build the embedding input text.
type PendingCommit struct {
	CommitID int64
	Message  string
	Files    string
}

// SearchFilters narrows strategy queries. Zero values mean "no filter".
type SearchFilters struct {
	RepoName string    // Substring match on repository name
	Language string    // Exact match on change language tag
	After    time.Time // Commit timestamp lower bound (inclusive)
	Before   time.Time // Commit timestamp upper bound (inclusive)
}

// Status contains statistics about the commit store.
type Status struct {
	ReposCount      int
	ActiveRepos     int
	CommitsCount    int
	ChangesCount    int
	EmbeddingsCount int
	DBSizeMB        float64
}
