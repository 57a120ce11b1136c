// Package capture records git commits into the store. It shells out to the
// git CLI through a small Runner seam, reads commit metadata and per-file
// diffs/contents, and writes each commit atomically. Re-capturing a commit
// is a no-op, enforced by the store's (repo, hash) uniqueness constraint.
package capture
