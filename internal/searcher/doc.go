// Package searcher answers natural-language and code-flavored queries over
// the commit store.
//
// A query flows router -> strategies -> merge. The router picks a strategy
// from cheap lexical cues (or falls back to running all four), each strategy
// produces scored candidates, and the merger deduplicates by commit,
// keeping the maximum score and unioning evidence. Responses are cached in
// an LRU keyed by a hash of the normalized request.
package searcher
