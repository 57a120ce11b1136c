package types

// FunctionSpan identifies a function/class-like construct within a file's
// text. Spans are derived on demand from stored code and never persisted.
// Line numbers are 1-based and inclusive on both ends.
type FunctionSpan struct {
	Name      string
	Code      string
	StartLine int
	EndLine   int

	// ChangedLines is the subset of lines in [StartLine, EndLine] touched by
	// a diff, sorted ascending. Populated only by changed-function
	// intersection; empty for plain extraction.
	ChangedLines []int
}

// Validate checks span line ordering and changed-line containment.
func (fs *FunctionSpan) Validate() error {
	if fs.StartLine > fs.EndLine {
		return ErrInvalidSpan
	}
	for _, line := range fs.ChangedLines {
		if line < fs.StartLine || line > fs.EndLine {
			return ErrInvalidSpan
		}
	}
	return nil
}

// Contains reports whether the given 1-based line number falls inside the span.
func (fs *FunctionSpan) Contains(line int) bool {
	return line >= fs.StartLine && line <= fs.EndLine
}
