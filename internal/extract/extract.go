package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/devlog-mcp/pkg/types"
)

// FallbackSpanName names the single whole-text span returned for languages
// without a structural scanner.
const FallbackSpanName = "code_block"

// Extract returns the function/class-like spans found in text. Languages
// outside the structural-scan set yield a single span covering the whole
// text, so callers can treat output uniformly.
func Extract(text, language string) []types.FunctionSpan {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")

	switch language {
	case "python":
		return indentScan(lines)
	case "javascript", "typescript", "java", "c", "cpp", "go":
		return braceScan(lines, language)
	default:
		return []types.FunctionSpan{{
			Name:      FallbackSpanName,
			Code:      text,
			StartLine: 1,
			EndLine:   len(lines),
		}}
	}
}

// indentHeader matches def/class headers in indentation-based source.
var indentHeader = regexp.MustCompile(`^(\s*)(?:async\s+def|def|class)\s+([A-Za-z_]\w*)`)

// openSpan tracks a definition whose end has not been found yet.
type openSpan struct {
	name      string
	indent    int
	startLine int // 1-based
}

// indentScan walks lines once, opening a span at each def/class header and
// closing it at the first non-blank line at the header's indentation depth
// or shallower. Nested definitions produce their own spans, contained in the
// outer one.
func indentScan(lines []string) []types.FunctionSpan {
	spans := make([]types.FunctionSpan, 0)
	stack := make([]openSpan, 0, 4)
	lastNonBlank := 0

	closeDeeper := func(indent, endLine int) {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if indent > top.indent {
				break
			}
			stack = stack[:len(stack)-1]
			spans = append(spans, types.FunctionSpan{
				Name:      top.name,
				Code:      strings.Join(lines[top.startLine-1:endLine], "\n"),
				StartLine: top.startLine,
				EndLine:   endLine,
			})
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue // blank lines never close a span
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		closeDeeper(indent, lastNonBlank)
		lastNonBlank = lineNo

		if m := indentHeader.FindStringSubmatch(line); m != nil {
			stack = append(stack, openSpan{
				name:      m[2],
				indent:    len(m[1]),
				startLine: lineNo,
			})
		}
	}
	closeDeeper(-1, lastNonBlank)

	sort.Slice(spans, func(a, b int) bool {
		if spans[a].StartLine != spans[b].StartLine {
			return spans[a].StartLine < spans[b].StartLine
		}
		return spans[a].EndLine > spans[b].EndLine
	})
	return spans
}

// Per-language header patterns for brace-based source. Each pattern's first
// capture group is the construct name.
var braceHeaders = map[string][]*regexp.Regexp{
	"go": {
		regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Za-z_]\w*)\s*\(`),
		regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+(?:struct|interface)\s*\{`),
	},
	"javascript": jsHeaders,
	"typescript": jsHeaders,
	"java": {
		regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract|synchronized)\s+)*class\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract|synchronized)\s+)+[\w<>\[\],\s]+\s+([A-Za-z_]\w*)\s*\([^;]*$`),
		regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract|synchronized)\s+)+[\w<>\[\],\s]+\s+([A-Za-z_]\w*)\s*\([^;]*\)\s*\{`),
	},
	"c": cHeaders,
	"cpp": {
		regexp.MustCompile(`^\s*(?:class|struct)\s+([A-Za-z_]\w*)`),
		cFunctionHeader,
	},
}

var cFunctionHeader = regexp.MustCompile(`^[\w\*]+[\w\s\*]*\s[\*]*([A-Za-z_]\w*)\s*\([^;]*\)\s*\{?\s*$`)

var cHeaders = []*regexp.Regexp{cFunctionHeader}

var jsHeaders = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)`),
	regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*=>`),
	regexp.MustCompile(`^\s*(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`),
}

// braceScan finds header lines and walks forward from each, tracking net
// brace depth until it returns to zero. The main scan resumes on the line
// after the header, so nested constructs are matched independently.
func braceScan(lines []string, language string) []types.FunctionSpan {
	headers := braceHeaders[language]
	spans := make([]types.FunctionSpan, 0)

	for i, line := range lines {
		name := matchHeader(headers, line)
		if name == "" {
			continue
		}
		end := findBraceEnd(lines, i)
		if end < i {
			continue // no body found before EOF
		}
		spans = append(spans, types.FunctionSpan{
			Name:      name,
			Code:      strings.Join(lines[i:end+1], "\n"),
			StartLine: i + 1,
			EndLine:   end + 1,
		})
	}
	return spans
}

func matchHeader(headers []*regexp.Regexp, line string) string {
	for _, re := range headers {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// findBraceEnd returns the 0-based index of the line where the brace depth
// opened at start returns to zero, or -1 when no opening brace follows
// within the lookahead window.
func findBraceEnd(lines []string, start int) int {
	depth := 0
	seenOpen := false
	for j := start; j < len(lines); j++ {
		opens := strings.Count(lines[j], "{")
		closes := strings.Count(lines[j], "}")
		if opens > 0 {
			seenOpen = true
		}
		depth += opens - closes
		if seenOpen && depth <= 0 {
			return j
		}
		// A declaration with no body within a couple of lines is not a
		// definition (e.g. a prototype).
		if !seenOpen && j-start > 2 {
			return -1
		}
	}
	if seenOpen {
		return len(lines) - 1 // unbalanced braces, close at EOF
	}
	return -1
}
