package types

import "errors"

// Domain errors for type validation
var (
	// Search result errors
	ErrInvalidCommitID  = errors.New("invalid commit ID")
	ErrInvalidRank      = errors.New("rank must be >= 1")
	ErrInvalidScore     = errors.New("score must be >= 0")
	ErrMissingMatchType = errors.New("match type is required")

	// Function span errors
	ErrInvalidSpan = errors.New("span start line must be <= end line")
)
