// Package storage provides SQLite persistence for tracked repositories,
// captured commits, per-file code changes, and commit embeddings.
//
// The schema is versioned with semver-gated migrations applied on open.
// Two drivers are supported via build tags: the default pure-Go driver
// (modernc.org/sqlite) and a cgo driver (github.com/mattn/go-sqlite3)
// selected with -tags sqlite_fast.
//
// Writes from the capture path run inside a transaction (Tx); all search
// strategy queries read directly and only see active repositories.
package storage
