package intent

import (
	"regexp"
	"strings"
)

// longFormModifiers + workTypes detect requests to recite a known
// work in full, which should be routed as a fragmentation task rather
// than answered inline.
var longFormModifiers = []string{"full text of", "entire", "complete text of", "word for word", "verbatim"}
var workTypes = []string{"poem", "song", "play", "novel", "book", "script", "speech"}

var mcpVerbs = []string{"use the", "call the", "invoke", "run the tool", "execute the tool"}
var strongFilePathPattern = regexp.MustCompile(`[./][\w\-./]+\.(go|py|md|json|yaml|yml|txt|log)\b`)
var executionPattern = regexp.MustCompile(`\b(run|execute|deploy)\s+(this|the|a)\s+(script|command|job)\b`)

// SignalCheck implements Tier 2: structured regex/NLU detectors for
// fragmentation (recitation of known works) and tool routing
// (explicit MCP verbs, strong file-path patterns, execution
// patterns). When these fire, the label is returned directly.
func SignalCheck(text string) (string, bool) {
	lowered := strings.ToLower(text)

	if containsAny(lowered, longFormModifiers) && containsAny(lowered, workTypes) {
		return "fragmentation", true
	}

	if containsAny(lowered, mcpVerbs) {
		return "tool_routing", true
	}
	if strongFilePathPattern.MatchString(text) {
		return "tool_routing", true
	}
	if executionPattern.MatchString(lowered) {
		return "tool_routing", true
	}

	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
