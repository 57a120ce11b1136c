package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCommitMeta(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	old := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	seedCommit(t, store, "webapp", "aaaaaaa1111111", "add JWT auth to login", old)
	seedCommitWithFile(t, store, "webapp", "bbbbbbb2222222", "fix typo in README", recent, "README.md")
	seedCommit(t, store, "cli", "ccccccc3333333", "auth token refresh", recent)

	t.Run("message match newest first", func(t *testing.T) {
		hits, err := store.SearchCommitMeta(ctx, "auth", nil, 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "auth token refresh", hits[0].Message)
		assert.Equal(t, "add JWT auth to login", hits[1].Message)
	})

	t.Run("file path match", func(t *testing.T) {
		hits, err := store.SearchCommitMeta(ctx, "auth.py", nil, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2) // the README commit touches no auth.py
	})

	t.Run("repo filter", func(t *testing.T) {
		hits, err := store.SearchCommitMeta(ctx, "auth", &SearchFilters{RepoName: "web"}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "webapp", hits[0].RepoName)
	})

	t.Run("date range filter", func(t *testing.T) {
		hits, err := store.SearchCommitMeta(ctx, "auth", &SearchFilters{
			After: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "auth token refresh", hits[0].Message)
	})

	t.Run("limit applied", func(t *testing.T) {
		hits, err := store.SearchCommitMeta(ctx, "auth", nil, 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("no match", func(t *testing.T) {
		hits, err := store.SearchCommitMeta(ctx, "kubernetes", nil, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSearchExcludesInactiveRepos(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	seedCommit(t, store, "gone", "ddddddd4444444", "auth work", time.Now())
	repo, err := store.GetRepoByName(ctx, "gone")
	require.NoError(t, err)
	require.NoError(t, store.DeactivateRepo(ctx, repo.ID))

	hits, err := store.SearchCommitMeta(ctx, "auth", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	code, err := store.SearchCodeContent(ctx, "login", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestSearchCodeContent(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	id := seedCommit(t, store, "r", "eeeeeee5555555", "misc", time.Now())
	require.NoError(t, store.InsertCodeChange(ctx, &CodeChange{
		CommitID:   id,
		FilePath:   "main.go",
		ChangeKind: "modified",
		Language:   "go",
		DiffText:   "+func parseConfig() error {",
		CodeAfter:  strPtr("func parseConfig() error {\n\treturn nil\n}\n"),
	}))

	t.Run("matches code_after", func(t *testing.T) {
		hits, err := store.SearchCodeContent(ctx, "parseConfig", nil, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "main.go", hits[0].FilePath)
		assert.Contains(t, hits[0].CodeAfter, "parseConfig")
	})

	t.Run("matches diff text", func(t *testing.T) {
		hits, err := store.SearchCodeContent(ctx, "def login", nil, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "auth.py", hits[0].FilePath)
	})

	t.Run("language filter", func(t *testing.T) {
		hits, err := store.SearchCodeContent(ctx, "o", &SearchFilters{Language: "go"}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "go", hits[0].Language)
	})
}

func TestListChangesForFunctionScan(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	id := seedCommit(t, store, "r", "fffffff6666666", "mixed", time.Now())
	// A deletion with no code_after is not scannable
	require.NoError(t, store.InsertCodeChange(ctx, &CodeChange{
		CommitID: id, FilePath: "gone.py", ChangeKind: "deleted",
		Language: "python", CodeBefore: strPtr("def gone(): pass"),
	}))
	// Markdown is outside the structural scan set
	require.NoError(t, store.InsertCodeChange(ctx, &CodeChange{
		CommitID: id, FilePath: "notes.md", ChangeKind: "added",
		Language: "markdown", CodeAfter: strPtr("# notes"),
	}))

	hits, err := store.ListChangesForFunctionScan(ctx, nil, []string{"python", "go"}, 100)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "auth.py", hits[0].FilePath)
	assert.Contains(t, hits[0].CodeAfter, "def login")
}

func TestListCommitVectors(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	a := seedCommit(t, store, "active", "1234567abcdef0", "embedded", time.Now())
	b := seedCommit(t, store, "inactive", "7654321fedcba0", "hidden", time.Now())

	for _, id := range []int64{a, b} {
		require.NoError(t, store.UpsertEmbedding(ctx, &Embedding{
			CommitID: id, Vector: SerializeVector([]float32{1, 0, 0}),
			Dimension: 3, Provider: "local", Model: "m",
		}))
	}

	repo, err := store.GetRepoByName(ctx, "inactive")
	require.NoError(t, err)
	require.NoError(t, store.DeactivateRepo(ctx, repo.ID))

	vectors, err := store.ListCommitVectors(ctx)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, a, vectors[0].Commit.ID)

	decoded, err := DeserializeVector(vectors[0].Vector)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, decoded)
}

func TestVectorSerializationRoundTrip(t *testing.T) {
	original := []float32{0.1, -2.5, 3.14159, 0, 1e-8}
	decoded, err := DeserializeVector(SerializeVector(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = DeserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
