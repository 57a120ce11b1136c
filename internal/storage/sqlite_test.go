package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/devlog-mcp/pkg/types"
)

func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

// seedCommit inserts a repo, a commit, and one python change touching
// auth.py; returns the commit ID.
func seedCommit(t *testing.T, store *SQLiteStorage, repoName, hash, message string, committedAt time.Time) int64 {
	t.Helper()
	return seedCommitWithFile(t, store, repoName, hash, message, committedAt, "auth.py")
}

// seedCommitWithFile is seedCommit with the touched file path under the
// caller's control.
func seedCommitWithFile(t *testing.T, store *SQLiteStorage, repoName, hash, message string, committedAt time.Time, filePath string) int64 {
	t.Helper()
	ctx := context.Background()

	repo, err := store.GetRepoByName(ctx, repoName)
	if err == ErrNotFound {
		repo = &Repo{Name: repoName, Path: "/tmp/" + repoName}
		require.NoError(t, store.CreateRepo(ctx, repo))
	} else {
		require.NoError(t, err)
	}

	commit := &Commit{
		RepoID:      repo.ID,
		Hash:        hash,
		ShortHash:   hash[:7],
		Message:     message,
		Author:      "dev@example.com",
		CommittedAt: committedAt,
		Branch:      "main",
	}
	created, err := store.InsertCommit(ctx, commit)
	require.NoError(t, err)
	require.True(t, created)

	change := &CodeChange{
		CommitID:   commit.ID,
		FilePath:   filePath,
		ChangeKind: "modified",
		Language:   types.DetectLanguage(filePath),
		DiffText:   "@@ -1,2 +1,3 @@\n+def login(user):",
		CodeAfter:  strPtr("def login(user):\n    return token(user)\n"),
		LinesAdded: 1,
	}
	require.NoError(t, store.InsertCodeChange(ctx, change))
	return commit.ID
}

func TestCreateAndGetRepo(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	repo := &Repo{Name: "devlog", Path: "/home/dev/devlog"}
	require.NoError(t, store.CreateRepo(ctx, repo))
	assert.NotZero(t, repo.ID)
	assert.True(t, repo.Active)

	byPath, err := store.GetRepoByPath(ctx, "/home/dev/devlog")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, byPath.ID)
	assert.Equal(t, "devlog", byPath.Name)
	assert.True(t, byPath.LastCommitAt.IsZero())

	byName, err := store.GetRepoByName(ctx, "devlog")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, byName.ID)

	_, err = store.GetRepoByPath(ctx, "/nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateRepoPath(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRepo(ctx, &Repo{Name: "a", Path: "/same"}))
	err := store.CreateRepo(ctx, &Repo{Name: "b", Path: "/same"})
	assert.Error(t, err)
}

func TestDeactivateRepo(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	repo := &Repo{Name: "old", Path: "/old"}
	require.NoError(t, store.CreateRepo(ctx, repo))
	require.NoError(t, store.DeactivateRepo(ctx, repo.ID))

	// Row survives, just inactive
	got, err := store.GetRepoByPath(ctx, "/old")
	require.NoError(t, err)
	assert.False(t, got.Active)

	active, err := store.ListRepos(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.ListRepos(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, store.DeactivateRepo(ctx, 9999), ErrNotFound)
}

func TestInsertCommitIdempotent(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	repo := &Repo{Name: "r", Path: "/r"}
	require.NoError(t, store.CreateRepo(ctx, repo))

	commit := &Commit{
		RepoID:      repo.ID,
		Hash:        "abc123def456",
		ShortHash:   "abc123d",
		Message:     "first",
		Author:      "dev",
		CommittedAt: time.Now(),
	}
	created, err := store.InsertCommit(ctx, commit)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := commit.ID

	// Same (repo, hash) again: no new row, existing ID comes back
	dup := &Commit{
		RepoID:      repo.ID,
		Hash:        "abc123def456",
		ShortHash:   "abc123d",
		Message:     "first",
		Author:      "dev",
		CommittedAt: time.Now(),
	}
	created, err = store.InsertCommit(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, dup.ID)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.CommitsCount)
}

func TestTimestampsNormalizedToUTC(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	// Commit authored in a non-UTC timezone; the stored value must come back
	// as the same instant, and subsequent scans must not error.
	authored := time.Date(2026, 8, 20, 14, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	id := seedCommit(t, store, "r", "0123456abcdef9", "offset commit", authored)

	meta, err := store.GetCommitByHash(ctx, "0123456abcdef9")
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.True(t, meta.CommittedAt.Equal(authored))
	assert.Equal(t, time.UTC, meta.CommittedAt.Location())

	repo, err := store.GetRepoByName(ctx, "r")
	require.NoError(t, err)
	require.NoError(t, store.TouchRepo(ctx, repo.ID, authored))

	got, err := store.GetRepoByPath(ctx, repo.Path)
	require.NoError(t, err)
	assert.True(t, got.LastCommitAt.Equal(authored))

	hits, err := store.SearchCommitMeta(ctx, "offset", nil, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestGetCommitByHashPrefix(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	id := seedCommit(t, store, "r", "deadbeefcafe0123", "add login", time.Now())

	full, err := store.GetCommitByHash(ctx, "deadbeefcafe0123")
	require.NoError(t, err)
	assert.Equal(t, id, full.ID)
	assert.Equal(t, "r", full.RepoName)

	prefix, err := store.GetCommitByHash(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, id, prefix.ID)

	short, err := store.GetCommitByHash(ctx, "deadbee")
	require.NoError(t, err)
	assert.Equal(t, id, short.ID)

	_, err = store.GetCommitByHash(ctx, "ffffffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCodeChangesRoundTrip(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	id := seedCommit(t, store, "r", "1111111aaaaaaa", "change", time.Now())

	deleted := &CodeChange{
		CommitID:     id,
		FilePath:     "legacy.py",
		ChangeKind:   "deleted",
		Language:     "python",
		CodeBefore:   strPtr("def old():\n    pass\n"),
		LinesRemoved: 2,
	}
	require.NoError(t, store.InsertCodeChange(ctx, deleted))

	changes, err := store.ListChangesByCommit(ctx, id)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	// Ordered by file path
	assert.Equal(t, "auth.py", changes[0].FilePath)
	require.NotNil(t, changes[0].CodeAfter)
	assert.Contains(t, *changes[0].CodeAfter, "def login")

	assert.Equal(t, "legacy.py", changes[1].FilePath)
	assert.Nil(t, changes[1].CodeAfter)
	require.NotNil(t, changes[1].CodeBefore)

	files, err := store.ListFilesByCommit(ctx, id)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "deleted", files[1].ChangeKind)
	assert.Equal(t, 2, files[1].LinesDel)
}

func TestTouchRepo(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	repo := &Repo{Name: "r", Path: "/r"}
	require.NoError(t, store.CreateRepo(ctx, repo))

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchRepo(ctx, repo.ID, ts))
	require.NoError(t, store.TouchRepo(ctx, repo.ID, ts.Add(time.Hour)))

	got, err := store.GetRepoByPath(ctx, "/r")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommitCount)
	assert.False(t, got.LastCommitAt.IsZero())
}

func TestTransactionCommitAndRollback(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	repo := &Repo{Name: "r", Path: "/r"}
	require.NoError(t, store.CreateRepo(ctx, repo))

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	commit := &Commit{
		RepoID: repo.ID, Hash: "aaaa1111bbbb", ShortHash: "aaaa111",
		Message: "tx", Author: "dev", CommittedAt: time.Now(),
	}
	_, err = tx.InsertCommit(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = store.GetCommitByHash(ctx, "aaaa1111bbbb")
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.InsertCommit(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, tx.InsertCodeChange(ctx, &CodeChange{
		CommitID: commit.ID, FilePath: "a.go", ChangeKind: "added", Language: "go",
	}))
	require.NoError(t, tx.TouchRepo(ctx, repo.ID, commit.CommittedAt))
	require.NoError(t, tx.Commit())

	got, err := store.GetCommitByHash(ctx, "aaaa1111bbbb")
	require.NoError(t, err)
	assert.Equal(t, "tx", got.Message)
}

func TestEmbeddingUpsert(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	id := seedCommit(t, store, "r", "2222222bbbbbbb", "embed me", time.Now())

	emb := &Embedding{
		CommitID:  id,
		Vector:    SerializeVector([]float32{0.1, 0.2, 0.3}),
		Dimension: 3,
		Provider:  "local",
		Model:     "hash-embed",
	}
	require.NoError(t, store.UpsertEmbedding(ctx, emb))

	got, err := store.GetEmbedding(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Dimension)
	assert.Equal(t, "local", got.Provider)

	// Overwrite with a new provider
	emb.Vector = SerializeVector([]float32{1, 0})
	emb.Dimension = 2
	emb.Provider = "ollama"
	require.NoError(t, store.UpsertEmbedding(ctx, emb))

	got, err = store.GetEmbedding(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Dimension)
	assert.Equal(t, "ollama", got.Provider)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.EmbeddingsCount)

	_, err = store.GetEmbedding(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCommitsWithoutEmbedding(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	a := seedCommit(t, store, "r", "3333333ccccccc", "pending one", time.Now())
	b := seedCommit(t, store, "r", "4444444ddddddd", "pending two", time.Now())

	pending, err := store.ListCommitsWithoutEmbedding(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a, pending[0].CommitID)
	assert.Equal(t, "pending one", pending[0].Message)
	assert.Contains(t, pending[0].Files, "auth.py")

	require.NoError(t, store.UpsertEmbedding(ctx, &Embedding{
		CommitID: a, Vector: SerializeVector([]float32{1}), Dimension: 1,
		Provider: "local", Model: "m",
	}))

	pending, err = store.ListCommitsWithoutEmbedding(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b, pending[0].CommitID)
}

func TestGetStatus(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	seedCommit(t, store, "one", "5555555eeeeeee", "m", time.Now())
	seedCommit(t, store, "two", "6666666fffffff", "m", time.Now())

	repo, err := store.GetRepoByName(ctx, "two")
	require.NoError(t, err)
	require.NoError(t, store.DeactivateRepo(ctx, repo.ID))

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.ReposCount)
	assert.Equal(t, 1, status.ActiveRepos)
	assert.Equal(t, 2, status.CommitsCount)
	assert.Equal(t, 2, status.ChangesCount)
	assert.Equal(t, 0, status.EmbeddingsCount)
	assert.GreaterOrEqual(t, status.DBSizeMB, 0.0)
}
