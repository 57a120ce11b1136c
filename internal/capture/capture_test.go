package capture

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/devlog-mcp/internal/storage"
)

// stubRunner answers git invocations from a canned table keyed by the
// joined argument list.
type stubRunner struct {
	responses map[string]string
	errs      map[string]error
}

func (s *stubRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	if err, ok := s.errs[key]; ok {
		return "", err
	}
	if out, ok := s.responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("no stub for: git %s", key)
}

const (
	fullHash  = "aaaa1111bbbb2222cccc3333dddd4444eeee5555"
	shortHash = "aaaa111"
)

func newStub() *stubRunner {
	return &stubRunner{
		responses: map[string]string{
			"rev-parse --git-dir":         ".git\n",
			"rev-parse --abbrev-ref HEAD": "main\n",
			"show -s --format=%H%x00%h%x00%an <%ae>%x00%aI%x00%B HEAD": fullHash + "\x00" + shortHash +
				"\x00Dev One <dev@example.com>\x002026-08-20T14:30:00+02:00\x00add JWT auth\n",
			"show --name-status --format= " + fullHash: "M\tauth.py\nA\tREADME.md\n",
			"show --numstat --format= " + fullHash:     "3\t1\tauth.py\n5\t0\tREADME.md\n",
			"rev-parse --verify " + fullHash + "^":     fullHash[:8] + "\n",
			"show --format= --patch " + fullHash + " -- auth.py":   "@@ -1,1 +1,3 @@\n+def login(user):\n",
			"show --format= --patch " + fullHash + " -- README.md": "@@ -0,0 +1,5 @@\n+# readme\n",
			"show " + fullHash + ":auth.py":                        "def login(user):\n    return token(user)\n",
			"show " + fullHash + ":README.md":                      "# readme\n",
			"show " + fullHash + "^:auth.py":                       "def old_login(user):\n    pass\n",
		},
		errs: map[string]error{},
	}
}

func setupCapture(t *testing.T) (*Capture, *storage.SQLiteStorage, *stubRunner) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	stub := newStub()
	return NewWithRunner(store, stub), store, stub
}

func TestTrackRepo(t *testing.T) {
	cap, store, _ := setupCapture(t)
	ctx := context.Background()

	repo, err := cap.TrackRepo(ctx, "/home/dev/webapp", "")
	require.NoError(t, err)
	assert.Equal(t, "webapp", repo.Name) // name defaults to the directory
	assert.True(t, repo.Active)

	// Tracking the same path again returns the existing record
	again, err := cap.TrackRepo(ctx, "/home/dev/webapp", "other")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, again.ID)

	repos, err := store.ListRepos(ctx, false)
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}

func TestTrackRepoNotAGitRepo(t *testing.T) {
	cap, _, stub := setupCapture(t)
	stub.errs["rev-parse --git-dir"] = fmt.Errorf("fatal: not a git repository")

	_, err := cap.TrackRepo(context.Background(), "/tmp/plainfolder", "")
	assert.ErrorIs(t, err, ErrNotARepo)
}

func TestUntrackRepo(t *testing.T) {
	cap, store, _ := setupCapture(t)
	ctx := context.Background()

	repo, err := cap.TrackRepo(ctx, "/home/dev/webapp", "webapp")
	require.NoError(t, err)

	require.NoError(t, cap.UntrackRepo(ctx, "webapp"))

	got, err := store.GetRepoByPath(ctx, repo.Path)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.ErrorIs(t, cap.UntrackRepo(ctx, "missing"), storage.ErrNotFound)
}

func TestCaptureCommit(t *testing.T) {
	cap, store, _ := setupCapture(t)
	ctx := context.Background()

	repo, err := cap.TrackRepo(ctx, "/home/dev/webapp", "webapp")
	require.NoError(t, err)

	created, err := cap.CaptureCommit(ctx, "/home/dev/webapp", "HEAD")
	require.NoError(t, err)
	assert.True(t, created)

	meta, err := store.GetCommitByHash(ctx, shortHash)
	require.NoError(t, err)
	assert.Equal(t, fullHash, meta.Hash)
	assert.Equal(t, "add JWT auth", meta.Message)
	assert.Equal(t, "Dev One <dev@example.com>", meta.Author)
	// The fixture is authored at +02:00; stored and read back as the same
	// instant in UTC
	assert.True(t, meta.CommittedAt.Equal(time.Date(2026, 8, 20, 12, 30, 0, 0, time.UTC)))
	assert.Equal(t, "main", meta.Branch)
	assert.Equal(t, 2, meta.FilesChanged)
	assert.Equal(t, 8, meta.Insertions)
	assert.Equal(t, 1, meta.Deletions)

	changes, err := store.ListChangesByCommit(ctx, meta.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	readme, auth := changes[0], changes[1]
	assert.Equal(t, "README.md", readme.FilePath)
	assert.Equal(t, "added", readme.ChangeKind)
	assert.Equal(t, "markdown", readme.Language)
	assert.Nil(t, readme.CodeBefore) // additions have no pre-change text

	assert.Equal(t, "auth.py", auth.FilePath)
	assert.Equal(t, "modified", auth.ChangeKind)
	assert.Equal(t, "python", auth.Language)
	assert.Equal(t, 3, auth.LinesAdded)
	assert.Equal(t, 1, auth.LinesRemoved)
	require.NotNil(t, auth.CodeAfter)
	assert.Contains(t, *auth.CodeAfter, "def login")
	require.NotNil(t, auth.CodeBefore)
	assert.Contains(t, *auth.CodeBefore, "old_login")

	// Repo bookkeeping updated
	got, err := store.GetRepoByPath(ctx, repo.Path)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommitCount)
	assert.False(t, got.LastCommitAt.IsZero())
}

func TestCaptureCommitDuplicateIsNoOp(t *testing.T) {
	cap, store, _ := setupCapture(t)
	ctx := context.Background()

	_, err := cap.TrackRepo(ctx, "/home/dev/webapp", "webapp")
	require.NoError(t, err)

	created, err := cap.CaptureCommit(ctx, "/home/dev/webapp", "HEAD")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = cap.CaptureCommit(ctx, "/home/dev/webapp", "HEAD")
	require.NoError(t, err)
	assert.False(t, created)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.CommitsCount)
	assert.Equal(t, 2, status.ChangesCount)

	repo, err := store.GetRepoByName(ctx, "webapp")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.CommitCount) // duplicate must not bump the count
}

func TestCaptureSameCommitIntoTwoClones(t *testing.T) {
	cap, store, _ := setupCapture(t)
	ctx := context.Background()

	// Two clones of the same project: identical default name, distinct paths.
	// The duplicate check is per repository, so both captures must insert.
	_, err := cap.TrackRepo(ctx, "/home/dev/webapp", "")
	require.NoError(t, err)
	_, err = cap.TrackRepo(ctx, "/home/other/webapp", "")
	require.NoError(t, err)

	created, err := cap.CaptureCommit(ctx, "/home/dev/webapp", "HEAD")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = cap.CaptureCommit(ctx, "/home/other/webapp", "HEAD")
	require.NoError(t, err)
	assert.True(t, created)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.CommitsCount)

	// Re-capturing either clone is still a no-op
	created, err = cap.CaptureCommit(ctx, "/home/other/webapp", "HEAD")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCaptureInitialCommit(t *testing.T) {
	cap, _, stub := setupCapture(t)
	ctx := context.Background()

	// No parent rev: every file is an addition with no pre-change text
	stub.errs["rev-parse --verify "+fullHash+"^"] = fmt.Errorf("fatal: needed a single revision")
	stub.responses["show --name-status --format= "+fullHash] = "A\tauth.py\n"
	stub.responses["show --numstat --format= "+fullHash] = "2\t0\tauth.py\n"

	_, err := cap.TrackRepo(ctx, "/home/dev/webapp", "webapp")
	require.NoError(t, err)

	created, err := cap.CaptureCommit(ctx, "/home/dev/webapp", "HEAD")
	require.NoError(t, err)
	assert.True(t, created)

	store := cap.store
	meta, err := store.GetCommitByHash(ctx, fullHash)
	require.NoError(t, err)

	changes, err := store.ListChangesByCommit(ctx, meta.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "added", changes[0].ChangeKind)
	assert.Nil(t, changes[0].CodeBefore)
	require.NotNil(t, changes[0].CodeAfter)
}

func TestCaptureUntrackedRepo(t *testing.T) {
	cap, _, _ := setupCapture(t)

	_, err := cap.CaptureCommit(context.Background(), "/never/tracked", "HEAD")
	assert.Error(t, err)
}
