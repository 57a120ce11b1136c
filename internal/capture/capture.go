package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/devlog-mcp/internal/storage"
	"github.com/dshills/devlog-mcp/pkg/types"
)

var (
	// ErrNotARepo is returned when the given path is not a git work tree
	ErrNotARepo = errors.New("not a git repository")
)

// fileConcurrency bounds parallel git calls when collecting per-file diffs.
const fileConcurrency = 4

// Capture records commits from tracked repositories into the store.
type Capture struct {
	store storage.Storage
	git   Runner
}

// New creates a Capture that shells out to the git CLI.
func New(store storage.Storage) *Capture {
	return NewWithRunner(store, execRunner{})
}

// NewWithRunner creates a Capture with a custom git runner.
func NewWithRunner(store storage.Storage, git Runner) *Capture {
	return &Capture{store: store, git: git}
}

// TrackRepo registers a repository for capture. Re-tracking a known path
// returns the existing record unchanged.
func (c *Capture) TrackRepo(ctx context.Context, path, name string) (*storage.Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	if _, err := c.git.Run(ctx, abs, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepo, abs)
	}

	if name == "" {
		name = filepath.Base(abs)
	}

	existing, err := c.store.GetRepoByPath(ctx, abs)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	repo := &storage.Repo{Name: name, Path: abs}
	if err := c.store.CreateRepo(ctx, repo); err != nil {
		return nil, fmt.Errorf("creating repo record: %w", err)
	}
	return repo, nil
}

// UntrackRepo deactivates a tracked repository by name. The repository's
// history stays in the store; it just stops appearing in search.
func (c *Capture) UntrackRepo(ctx context.Context, name string) error {
	repo, err := c.store.GetRepoByName(ctx, name)
	if err != nil {
		return err
	}
	return c.store.DeactivateRepo(ctx, repo.ID)
}

// CaptureCommit records one commit and its per-file changes atomically.
// Returns false when the commit was already captured (a no-op, not an
// error). hash may be any rev git resolves, including "HEAD".
func (c *Capture) CaptureCommit(ctx context.Context, repoPath, hash string) (bool, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}

	repo, err := c.store.GetRepoByPath(ctx, abs)
	if err != nil {
		return false, fmt.Errorf("repository not tracked: %w", err)
	}

	commit, err := c.readCommit(ctx, abs, hash)
	if err != nil {
		return false, err
	}
	commit.RepoID = repo.ID

	// Already captured in this repo? Skip the per-file git work entirely.
	// Repo identity is the path; names are not unique across clones.
	if existing, err := c.store.GetCommitByHash(ctx, commit.Hash); err == nil && existing.RepoPath == repo.Path {
		return false, nil
	}

	changes, err := c.readChanges(ctx, abs, commit.Hash)
	if err != nil {
		return false, err
	}
	commit.FilesChanged = len(changes)
	for _, ch := range changes {
		commit.Insertions += ch.LinesAdded
		commit.Deletions += ch.LinesRemoved
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	created, err := tx.InsertCommit(ctx, commit)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil // duplicate capture, uniqueness constraint held
	}

	for _, change := range changes {
		change.CommitID = commit.ID
		if err := tx.InsertCodeChange(ctx, change); err != nil {
			return false, err
		}
	}
	if err := tx.TouchRepo(ctx, repo.ID, commit.CommittedAt); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// readCommit loads commit metadata via a single git show.
func (c *Capture) readCommit(ctx context.Context, dir, hash string) (*storage.Commit, error) {
	out, err := c.git.Run(ctx, dir, "show", "-s",
		"--format=%H%x00%h%x00%an <%ae>%x00%aI%x00%B", hash)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(strings.TrimRight(out, "\n"), "\x00", 5)
	if len(parts) < 5 {
		return nil, fmt.Errorf("unexpected git show output for %s", hash)
	}

	committedAt, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return nil, fmt.Errorf("parsing commit timestamp: %w", err)
	}

	branch := ""
	if out, err := c.git.Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		branch = strings.TrimSpace(out)
	}

	return &storage.Commit{
		Hash:      parts[0],
		ShortHash: parts[1],
		Author:    parts[2],
		// %aI carries the author's fixed offset; normalize so the stored
		// timestamp round-trips through the driver.
		CommittedAt: committedAt.UTC(),
		Message:     strings.TrimSpace(parts[4]),
		Branch:      branch,
	}, nil
}

// readChanges collects the per-file changes of a commit, fetching diffs and
// file contents concurrently.
func (c *Capture) readChanges(ctx context.Context, dir, hash string) ([]*storage.CodeChange, error) {
	statusOut, err := c.git.Run(ctx, dir, "show", "--name-status", "--format=", hash)
	if err != nil {
		return nil, err
	}

	// The parent may not exist (initial commit); every file is then a pure
	// addition and there is no pre-change text.
	hasParent := true
	if _, err := c.git.Run(ctx, dir, "rev-parse", "--verify", hash+"^"); err != nil {
		hasParent = false
	}

	numstat := c.readNumstat(ctx, dir, hash)

	type entry struct {
		kind string
		path string
	}
	entries := make([]entry, 0)
	for _, line := range strings.Split(statusOut, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		kind := statusKind(fields[0])
		path := fields[len(fields)-1] // renames list old then new; keep new
		entries = append(entries, entry{kind: kind, path: path})
	}

	changes := make([]*storage.CodeChange, len(entries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fileConcurrency)

	for i, e := range entries {
		g.Go(func() error {
			change := &storage.CodeChange{
				FilePath:   e.path,
				ChangeKind: e.kind,
				Language:   types.DetectLanguage(e.path),
			}
			if stat, ok := numstat[e.path]; ok {
				change.LinesAdded = stat[0]
				change.LinesRemoved = stat[1]
			}

			if diff, err := c.git.Run(gctx, dir, "show", "--format=", "--patch", hash, "--", e.path); err == nil {
				change.DiffText = diff
			}

			if e.kind != "deleted" {
				if after, err := c.git.Run(gctx, dir, "show", hash+":"+e.path); err == nil {
					change.CodeAfter = &after
				}
			}
			if hasParent && e.kind != "added" {
				if before, err := c.git.Run(gctx, dir, "show", hash+"^:"+e.path); err == nil {
					change.CodeBefore = &before
				}
			}

			mu.Lock()
			changes[i] = change
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(changes, func(a, b int) bool {
		return changes[a].FilePath < changes[b].FilePath
	})
	return changes, nil
}

// readNumstat maps file path to [added, removed]. Binary files report "-"
// and are counted as zero.
func (c *Capture) readNumstat(ctx context.Context, dir, hash string) map[string][2]int {
	stats := make(map[string][2]int)
	out, err := c.git.Run(ctx, dir, "show", "--numstat", "--format=", hash)
	if err != nil {
		return stats
	}

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) < 3 {
			continue
		}
		added, _ := strconv.Atoi(fields[0])
		removed, _ := strconv.Atoi(fields[1])
		stats[fields[len(fields)-1]] = [2]int{added, removed}
	}
	return stats
}

func statusKind(status string) string {
	switch {
	case strings.HasPrefix(status, "A"):
		return "added"
	case strings.HasPrefix(status, "D"):
		return "deleted"
	case strings.HasPrefix(status, "R"):
		return "renamed"
	default:
		return "modified"
	}
}
