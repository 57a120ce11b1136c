package searcher

// Per-strategy score constants. These are tunable defaults, not calibrated
// relevance weights: keyword matches are treated as the weakest evidence
// (message text is coarser signal than code content), and raw cosine
// similarity is scaled to sit in a comparable range to the fixed scores.
const (
	ScoreKeyword  = 0.6
	ScoreFunction = 0.9
	ScoreCode     = 1.0
	SemanticScale = 1.5
)

// Snippet extraction settings.
const (
	SnippetContextLines  = 2   // lines of context around the matching line
	SnippetFallbackLines = 5   // lines taken when no line-level match exists
	SnippetMaxChars      = 300 // cap for function-body snippets
)
