package searcher

import (
	"regexp"
	"strings"
)

// Mode selects which strategies a search runs.
type Mode string

const (
	ModeAuto     Mode = "auto"     // Classify the query, then route
	ModeHybrid   Mode = "hybrid"   // All four strategies, merged
	ModeKeyword  Mode = "keyword"  // Commit message / file path substring
	ModeCode     Mode = "code"     // Stored code / diff substring
	ModeFunction Mode = "function" // Function/class name scan
	ModeSemantic Mode = "semantic" // Embedding similarity
)

// Lexical cues checked in order. First match wins.
var (
	functionCues = []string{"function", "class", "method", "def ", "async def"}
	codeCues     = []string{"code", "implementation", "algorithm", "logic"}
)

const semanticMinWords = 5

// Classify routes a query to a single strategy or to hybrid. The rules are
// ordered: structural cues are checked before the sentence-length heuristic
// so that queries which look structural never trigger an embedding call.
func Classify(query string) Mode {
	lower := strings.ToLower(query)

	for _, cue := range functionCues {
		if strings.Contains(lower, cue) {
			return ModeFunction
		}
	}

	for _, cue := range codeCues {
		if strings.Contains(lower, cue) {
			return ModeCode
		}
	}

	if len(strings.Fields(query)) >= semanticMinWords &&
		!strings.ContainsAny(query, "(){}") {
		return ModeSemantic
	}

	return ModeHybrid
}

var (
	namedConstructPattern = regexp.MustCompile(`(?:function|method|class|def)\s+(\w+)`)
	bareIdentPattern      = regexp.MustCompile(`^[a-zA-Z_]\w*$`)
)

// Filler words dropped when reducing a query to a construct name.
var queryFillerWords = map[string]bool{
	"function": true, "class": true, "method": true, "def": true,
	"async": true, "find": true, "the": true, "a": true, "an": true,
	"show": true, "me": true, "where": true, "is": true,
}

// ExtractFunctionName reduces a query to the identifier the function-name
// strategy should match. "class UserAuth" yields "UserAuth"; "find the login
// function" yields "login". Queries that don't reduce to a single identifier
// are returned as-is.
func ExtractFunctionName(query string) string {
	lower := strings.ToLower(query)
	if m := namedConstructPattern.FindStringSubmatch(lower); m != nil {
		return m[1]
	}

	trimmed := strings.TrimSpace(query)
	if bareIdentPattern.MatchString(trimmed) {
		return trimmed
	}

	var kept []string
	for _, word := range strings.Fields(trimmed) {
		if !queryFillerWords[strings.ToLower(word)] {
			kept = append(kept, word)
		}
	}
	if len(kept) == 1 && bareIdentPattern.MatchString(kept[0]) {
		return kept[0]
	}

	return trimmed
}
