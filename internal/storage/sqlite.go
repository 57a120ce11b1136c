package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/devlog-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) InsertCommit(ctx context.Context, commit *Commit) (bool, error) {
	return t.storage.insertCommitWithQuerier(ctx, t.tx, commit)
}

func (t *sqliteTx) InsertCodeChange(ctx context.Context, change *CodeChange) error {
	return t.storage.insertCodeChangeWithQuerier(ctx, t.tx, change)
}

func (t *sqliteTx) TouchRepo(ctx context.Context, repoID int64, lastCommitAt time.Time) error {
	return t.storage.touchRepoWithQuerier(ctx, t.tx, repoID, lastCommitAt)
}

// Repository operations

func (s *SQLiteStorage) CreateRepo(ctx context.Context, repo *Repo) error {
	query := `
		INSERT INTO repos (name, path, tracked_since, commit_count, active)
		VALUES (?, ?, ?, 0, 1)
	`
	// All timestamps are stored in UTC. SQLite keeps them as text, and
	// fixed-offset values do not round-trip through the driver.
	now := time.Now().UTC()
	if repo.TrackedSince.IsZero() {
		repo.TrackedSince = now
	}
	repo.TrackedSince = repo.TrackedSince.UTC()
	result, err := s.db.ExecContext(ctx, query, repo.Name, repo.Path, repo.TrackedSince)
	if err != nil {
		return fmt.Errorf("failed to create repo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	repo.ID = id
	repo.Active = true
	return nil
}

const repoColumns = `id, name, path, tracked_since, last_commit_at, commit_count, active`

// scanRepo scans a single repo row handling the nullable last_commit_at.
func scanRepo(scan func(dest ...interface{}) error) (*Repo, error) {
	var repo Repo
	var lastCommitAt sql.NullTime
	err := scan(
		&repo.ID, &repo.Name, &repo.Path, &repo.TrackedSince,
		&lastCommitAt, &repo.CommitCount, &repo.Active,
	)
	if err != nil {
		return nil, err
	}
	if lastCommitAt.Valid {
		repo.LastCommitAt = lastCommitAt.Time
	}
	return &repo, nil
}

func (s *SQLiteStorage) GetRepoByPath(ctx context.Context, path string) (*Repo, error) {
	query := `SELECT ` + repoColumns + ` FROM repos WHERE path = ?`
	repo, err := scanRepo(s.db.QueryRowContext(ctx, query, path).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *SQLiteStorage) GetRepoByName(ctx context.Context, name string) (*Repo, error) {
	query := `SELECT ` + repoColumns + ` FROM repos WHERE name = ? ORDER BY id LIMIT 1`
	repo, err := scanRepo(s.db.QueryRowContext(ctx, query, name).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *SQLiteStorage) ListRepos(ctx context.Context, activeOnly bool) ([]*Repo, error) {
	query := `SELECT ` + repoColumns + ` FROM repos`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	repos := make([]*Repo, 0)
	for rows.Next() {
		repo, err := scanRepo(rows.Scan)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// DeactivateRepo marks a repo inactive. The row and its commits are kept.
func (s *SQLiteStorage) DeactivateRepo(ctx context.Context, repoID int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE repos SET active = 0 WHERE id = ?`, repoID)
	if err != nil {
		return fmt.Errorf("failed to deactivate repo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// touchRepoWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) touchRepoWithQuerier(ctx context.Context, q querier, repoID int64, lastCommitAt time.Time) error {
	query := `
		UPDATE repos
		SET last_commit_at = ?, commit_count = commit_count + 1
		WHERE id = ?
	`
	_, err := q.ExecContext(ctx, query, lastCommitAt.UTC(), repoID)
	if err != nil {
		return fmt.Errorf("failed to touch repo: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) TouchRepo(ctx context.Context, repoID int64, lastCommitAt time.Time) error {
	return s.touchRepoWithQuerier(ctx, s.db, repoID, lastCommitAt)
}

// Commit operations

// insertCommitWithQuerier inserts a commit, treating a duplicate
// (repo_id, hash) as a no-op per the store's uniqueness invariant.
func (s *SQLiteStorage) insertCommitWithQuerier(ctx context.Context, q querier, commit *Commit) (bool, error) {
	query := `
		INSERT OR IGNORE INTO commits (
			repo_id, hash, short_hash, message, author, committed_at,
			branch, files_changed, insertions, deletions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	commit.CommittedAt = commit.CommittedAt.UTC()
	result, err := q.ExecContext(ctx, query,
		commit.RepoID, commit.Hash, commit.ShortHash, commit.Message,
		commit.Author, commit.CommittedAt, commit.Branch,
		commit.FilesChanged, commit.Insertions, commit.Deletions,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert commit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Duplicate capture: load the existing row's ID so the caller has
		// a usable identity either way.
		err := q.QueryRowContext(ctx,
			`SELECT id FROM commits WHERE repo_id = ? AND hash = ?`,
			commit.RepoID, commit.Hash,
		).Scan(&commit.ID)
		if err != nil {
			return false, err
		}
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, err
	}
	commit.ID = id
	return true, nil
}

func (s *SQLiteStorage) InsertCommit(ctx context.Context, commit *Commit) (bool, error) {
	return s.insertCommitWithQuerier(ctx, s.db, commit)
}

const commitMetaColumns = `
	c.id, c.hash, c.short_hash, c.message, c.author, c.committed_at,
	c.branch, c.files_changed, c.insertions, c.deletions,
	r.name, r.path`

// scanCommitMeta scans one joined commit+repo row.
func scanCommitMeta(scan func(dest ...interface{}) error) (CommitMeta, error) {
	var meta CommitMeta
	var branch sql.NullString
	err := scan(
		&meta.ID, &meta.Hash, &meta.ShortHash, &meta.Message, &meta.Author,
		&meta.CommittedAt, &branch, &meta.FilesChanged, &meta.Insertions,
		&meta.Deletions, &meta.RepoName, &meta.RepoPath,
	)
	if err != nil {
		return CommitMeta{}, err
	}
	if branch.Valid {
		meta.Branch = branch.String
	}
	return meta, nil
}

func (s *SQLiteStorage) GetCommitByHash(ctx context.Context, hashOrPrefix string) (*CommitMeta, error) {
	query := `
		SELECT ` + commitMetaColumns + `
		FROM commits c
		JOIN repos r ON c.repo_id = r.id
		WHERE c.hash LIKE ? OR c.short_hash = ?
		ORDER BY c.committed_at DESC
		LIMIT 1
	`
	meta, err := scanCommitMeta(s.db.QueryRowContext(ctx, query, hashOrPrefix+"%", hashOrPrefix).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// insertCodeChangeWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertCodeChangeWithQuerier(ctx context.Context, q querier, change *CodeChange) error {
	query := `
		INSERT INTO code_changes (
			commit_id, file_path, change_kind, language, diff_text,
			code_before, code_after, lines_added, lines_removed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		change.CommitID, change.FilePath, change.ChangeKind, change.Language,
		change.DiffText, change.CodeBefore, change.CodeAfter,
		change.LinesAdded, change.LinesRemoved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert code change: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		change.ID = id
	}
	return nil
}

func (s *SQLiteStorage) InsertCodeChange(ctx context.Context, change *CodeChange) error {
	return s.insertCodeChangeWithQuerier(ctx, s.db, change)
}

func (s *SQLiteStorage) ListChangesByCommit(ctx context.Context, commitID int64) ([]*CodeChange, error) {
	query := `
		SELECT id, commit_id, file_path, change_kind, language, diff_text,
		       code_before, code_after, lines_added, lines_removed
		FROM code_changes
		WHERE commit_id = ?
		ORDER BY file_path
	`
	rows, err := s.db.QueryContext(ctx, query, commitID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	changes := make([]*CodeChange, 0)
	for rows.Next() {
		var change CodeChange
		var diffText, language sql.NullString
		var codeBefore, codeAfter sql.NullString

		err := rows.Scan(
			&change.ID, &change.CommitID, &change.FilePath, &change.ChangeKind,
			&language, &diffText, &codeBefore, &codeAfter,
			&change.LinesAdded, &change.LinesRemoved,
		)
		if err != nil {
			return nil, err
		}

		change.Language = language.String
		change.DiffText = diffText.String
		if codeBefore.Valid {
			change.CodeBefore = &codeBefore.String
		}
		if codeAfter.Valid {
			change.CodeAfter = &codeAfter.String
		}

		changes = append(changes, &change)
	}
	return changes, rows.Err()
}

func (s *SQLiteStorage) ListFilesByCommit(ctx context.Context, commitID int64) ([]types.FileMatch, error) {
	query := `
		SELECT file_path, change_kind, language, lines_added, lines_removed
		FROM code_changes
		WHERE commit_id = ?
		ORDER BY file_path
	`
	rows, err := s.db.QueryContext(ctx, query, commitID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]types.FileMatch, 0)
	for rows.Next() {
		var file types.FileMatch
		var language sql.NullString
		err := rows.Scan(&file.Path, &file.ChangeKind, &language, &file.LinesAdded, &file.LinesDel)
		if err != nil {
			return nil, err
		}
		file.Language = language.String
		files = append(files, file)
	}
	return files, rows.Err()
}

// Embedding operations

// UpsertEmbedding overwrites any prior vector for the commit. Generation is
// all-or-nothing per commit.
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (commit_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(commit_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		embedding.CommitID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, commitID int64) (*Embedding, error) {
	query := `
		SELECT commit_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE commit_id = ?
	`
	var embedding Embedding
	err := s.db.QueryRowContext(ctx, query, commitID).Scan(
		&embedding.CommitID, &embedding.Vector, &embedding.Dimension,
		&embedding.Provider, &embedding.Model, &embedding.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

func (s *SQLiteStorage) ListCommitsWithoutEmbedding(ctx context.Context) ([]PendingCommit, error) {
	query := `
		SELECT c.id, c.message, COALESCE(GROUP_CONCAT(cc.file_path, ', '), '')
		FROM commits c
		LEFT JOIN embeddings e ON c.id = e.commit_id
		LEFT JOIN code_changes cc ON c.id = cc.commit_id
		WHERE e.commit_id IS NULL
		GROUP BY c.id
		ORDER BY c.id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pending := make([]PendingCommit, 0)
	for rows.Next() {
		var p PendingCommit
		if err := rows.Scan(&p.CommitID, &p.Message, &p.Files); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repos").Scan(&status.ReposCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repos WHERE active = 1").Scan(&status.ActiveRepos)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM commits").Scan(&status.CommitsCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM code_changes").Scan(&status.ChangesCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&status.EmbeddingsCount)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DBSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}
