// Package types provides shared type definitions for the Devlog MCP server.
//
// This package defines domain types used across multiple components of Devlog,
// including search candidates, merged search results, function spans, and the
// language detection table.
//
// # Core Types
//
// Candidate represents an unmerged, strategy-scoped match for a commit. Each
// search strategy (keyword, code content, function name, semantic) produces a
// list of candidates:
//
//	cand := types.Candidate{
//	    CommitID:  42,
//	    RepoName:  "devlog",
//	    Message:   "add JWT auth",
//	    MatchType: types.MatchFunction,
//	    Score:     0.9,
//	}
//
// SearchResult is the final, merged, ranked, caller-facing match for a commit.
// It is produced by the result merger from one or more candidates and is never
// persisted.
//
// FunctionSpan identifies a function/class-like construct inside a file's text
// by line range. Spans are derived on demand by the extract package and are
// never stored.
//
// # Match Types and Scores
//
// Each strategy tags its candidates with a MatchType and a raw score. Scores
// are strategy-consistent but not calibrated across strategies; the merger
// takes the maximum across strategies when the same commit matches more than
// once.
//
// # Language Detection
//
// DetectLanguage maps a file path to a language tag using a file-extension
// table. Unknown extensions map to "text":
//
//	types.DetectLanguage("auth/login.py") // "python"
//	types.DetectLanguage("README")        // "text"
package types
