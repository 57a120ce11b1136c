package extract

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/dshills/devlog-mcp/pkg/types"
)

// hunkHeader matches unified-diff hunk headers, capturing the post-change
// start line and optional count.
var hunkHeader = regexp.MustCompile(`@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// ParseChangedLines collects the post-change line numbers touched by a
// unified diff. Per convention an omitted count means 1. Malformed headers
// contribute no lines; the parse never fails.
func ParseChangedLines(diffText string) map[int]bool {
	changed := make(map[int]bool)
	for _, m := range hunkHeader.FindAllStringSubmatch(diffText, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		count := 1
		if m[2] != "" {
			count, err = strconv.Atoi(m[2])
			if err != nil {
				continue
			}
		}
		for line := start; line < start+count; line++ {
			changed[line] = true
		}
	}
	return changed
}

// ChangedFunctions extracts spans from postText and keeps those whose line
// range intersects the diff's changed-line set, attaching the intersecting
// lines (sorted ascending) to each kept span.
func ChangedFunctions(diffText, postText, language string) []types.FunctionSpan {
	changed := ParseChangedLines(diffText)
	if len(changed) == 0 {
		return nil
	}

	kept := make([]types.FunctionSpan, 0)
	for _, span := range Extract(postText, language) {
		var touched []int
		for line := range changed {
			if span.Contains(line) {
				touched = append(touched, line)
			}
		}
		if len(touched) == 0 {
			continue
		}
		sort.Ints(touched)
		span.ChangedLines = touched
		kept = append(kept, span)
	}
	return kept
}
