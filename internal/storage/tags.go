package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// resolveCommitID maps a hash or prefix to a commit row ID, newest first when
// a prefix is ambiguous.
func (s *SQLiteStorage) resolveCommitID(ctx context.Context, hashOrPrefix string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM commits
		WHERE hash LIKE ? OR short_hash = ?
		ORDER BY committed_at DESC
		LIMIT 1
	`, hashOrPrefix+"%", hashOrPrefix).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddTag attaches a tag to a commit identified by hash or prefix. Returns
// false when the commit already carries the tag.
func (s *SQLiteStorage) AddTag(ctx context.Context, hashOrPrefix, tag string) (bool, error) {
	commitID, err := s.resolveCommitID(ctx, hashOrPrefix)
	if err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO commit_tags (commit_id, tag, created_at)
		VALUES (?, ?, ?)
	`, commitID, tag, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add tag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RemoveTag detaches a tag from a commit. ErrNotFound when the commit does
// not exist or does not carry the tag.
func (s *SQLiteStorage) RemoveTag(ctx context.Context, hashOrPrefix, tag string) error {
	commitID, err := s.resolveCommitID(ctx, hashOrPrefix)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM commit_tags WHERE commit_id = ? AND tag = ?`,
		commitID, tag)
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
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

// ListTags returns the tags on a commit, sorted.
func (s *SQLiteStorage) ListTags(ctx context.Context, hashOrPrefix string) ([]string, error) {
	commitID, err := s.resolveCommitID(ctx, hashOrPrefix)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tag FROM commit_tags WHERE commit_id = ? ORDER BY tag`,
		commitID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// SearchCommitsByTag finds commits carrying the exact tag, newest first,
// restricted to active repositories like the other search paths.
func (s *SQLiteStorage) SearchCommitsByTag(ctx context.Context, tag string, limit int) ([]CommitMeta, error) {
	query := `
		SELECT ` + commitMetaColumns + `
		FROM commit_tags t
		JOIN commits c ON t.commit_id = c.id
		JOIN repos r ON c.repo_id = r.id
		WHERE t.tag = ? AND r.active = 1
		ORDER BY c.committed_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("tag search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectCommitMeta(rows)
}
