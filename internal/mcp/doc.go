// Package mcp exposes the commit store over the Model Context Protocol.
//
// Six tools are registered: track_repo, untrack_repo, capture_commit,
// embed_commits, search_commits, and get_status. Handlers validate
// arguments, delegate to the capture pipeline and searcher, and return
// indented JSON as tool text. Errors carry JSON-RPC style codes.
package mcp
