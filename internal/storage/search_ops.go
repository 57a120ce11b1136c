package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// filterClauses converts SearchFilters into SQL conditions against the
// aliased commits (c) and repos (r) tables. Zero-value fields add nothing.
func filterClauses(filters *SearchFilters) ([]string, []interface{}) {
	conditions := []string{"r.active = 1"}
	args := []interface{}{}

	if filters == nil {
		return conditions, args
	}
	if filters.RepoName != "" {
		conditions = append(conditions, "r.name LIKE ?")
		args = append(args, "%"+filters.RepoName+"%")
	}
	if !filters.After.IsZero() {
		conditions = append(conditions, "c.committed_at >= ?")
		args = append(args, filters.After)
	}
	if !filters.Before.IsZero() {
		conditions = append(conditions, "c.committed_at <= ?")
		args = append(args, filters.Before)
	}
	return conditions, args
}

// SearchCommitMeta finds commits whose message or touched file paths contain
// the query substring, newest first.
func (s *SQLiteStorage) SearchCommitMeta(ctx context.Context, query string, filters *SearchFilters, limit int) ([]CommitMeta, error) {
	conditions, args := filterClauses(filters)
	pattern := "%" + query + "%"

	conditions = append(conditions, `(c.message LIKE ? OR EXISTS (
		SELECT 1 FROM code_changes cc
		WHERE cc.commit_id = c.id AND cc.file_path LIKE ?
	))`)
	args = append(args, pattern, pattern)

	if filters != nil && filters.Language != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM code_changes cc
			WHERE cc.commit_id = c.id AND cc.language = ?
		)`)
		args = append(args, filters.Language)
	}

	sqlQuery := `
		SELECT ` + commitMetaColumns + `
		FROM commits c
		JOIN repos r ON c.repo_id = r.id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY c.committed_at DESC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("commit meta search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectCommitMeta(rows)
}

func collectCommitMeta(rows *sql.Rows) ([]CommitMeta, error) {
	results := make([]CommitMeta, 0)
	for rows.Next() {
		meta, err := scanCommitMeta(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

const changeHitColumns = commitMetaColumns + `,
	cc.file_path, cc.language, cc.code_after, cc.diff_text`

func collectChangeHits(rows *sql.Rows) ([]ChangeHit, error) {
	hits := make([]ChangeHit, 0)
	for rows.Next() {
		var hit ChangeHit
		var branch, language, codeAfter, diffText sql.NullString
		err := rows.Scan(
			&hit.Commit.ID, &hit.Commit.Hash, &hit.Commit.ShortHash,
			&hit.Commit.Message, &hit.Commit.Author, &hit.Commit.CommittedAt,
			&branch, &hit.Commit.FilesChanged, &hit.Commit.Insertions,
			&hit.Commit.Deletions, &hit.Commit.RepoName, &hit.Commit.RepoPath,
			&hit.FilePath, &language, &codeAfter, &diffText,
		)
		if err != nil {
			return nil, err
		}
		hit.Commit.Branch = branch.String
		hit.Language = language.String
		hit.CodeAfter = codeAfter.String
		hit.DiffText = diffText.String
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// SearchCodeContent finds changes whose stored code or diff contains the
// query substring, newest commit first.
func (s *SQLiteStorage) SearchCodeContent(ctx context.Context, query string, filters *SearchFilters, limit int) ([]ChangeHit, error) {
	conditions, args := filterClauses(filters)
	pattern := "%" + query + "%"

	conditions = append(conditions, "(cc.code_after LIKE ? OR cc.diff_text LIKE ?)")
	args = append(args, pattern, pattern)

	if filters != nil && filters.Language != "" {
		conditions = append(conditions, "cc.language = ?")
		args = append(args, filters.Language)
	}

	sqlQuery := `
		SELECT ` + changeHitColumns + `
		FROM code_changes cc
		JOIN commits c ON cc.commit_id = c.id
		JOIN repos r ON c.repo_id = r.id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY c.committed_at DESC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("code content search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChangeHits(rows)
}

// ListChangesForFunctionScan returns changes with stored post-change code in
// one of the given languages, newest commit first. The limit bounds rows, not
// commits; callers scanning for function names stop at their own commit
// budget.
func (s *SQLiteStorage) ListChangesForFunctionScan(ctx context.Context, filters *SearchFilters, languages []string, limit int) ([]ChangeHit, error) {
	conditions, args := filterClauses(filters)
	conditions = append(conditions, "cc.code_after IS NOT NULL")

	if len(languages) > 0 {
		placeholders := make([]string, len(languages))
		for i, lang := range languages {
			placeholders[i] = "?"
			args = append(args, lang)
		}
		conditions = append(conditions, "cc.language IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filters != nil && filters.Language != "" {
		conditions = append(conditions, "cc.language = ?")
		args = append(args, filters.Language)
	}

	sqlQuery := `
		SELECT ` + changeHitColumns + `
		FROM code_changes cc
		JOIN commits c ON cc.commit_id = c.id
		JOIN repos r ON c.repo_id = r.id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY c.committed_at DESC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("function scan query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChangeHits(rows)
}

// ListCommitVectors returns every stored embedding joined with its commit,
// restricted to active repositories.
func (s *SQLiteStorage) ListCommitVectors(ctx context.Context) ([]CommitVector, error) {
	sqlQuery := `
		SELECT ` + commitMetaColumns + `, e.vector
		FROM embeddings e
		JOIN commits c ON e.commit_id = c.id
		JOIN repos r ON c.repo_id = r.id
		WHERE r.active = 1
	`
	rows, err := s.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("commit vector query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	vectors := make([]CommitVector, 0)
	for rows.Next() {
		var cv CommitVector
		var branch sql.NullString
		err := rows.Scan(
			&cv.Commit.ID, &cv.Commit.Hash, &cv.Commit.ShortHash,
			&cv.Commit.Message, &cv.Commit.Author, &cv.Commit.CommittedAt,
			&branch, &cv.Commit.FilesChanged, &cv.Commit.Insertions,
			&cv.Commit.Deletions, &cv.Commit.RepoName, &cv.Commit.RepoPath,
			&cv.Vector,
		)
		if err != nil {
			return nil, err
		}
		cv.Commit.Branch = branch.String
		vectors = append(vectors, cv)
	}
	return vectors, rows.Err()
}

// SerializeVector converts a float32 slice to little-endian bytes for storage.
func SerializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DeserializeVector converts stored little-endian bytes back to float32s.
func DeserializeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data length: %d", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}
