package observer

import (
	"encoding/json"
	"regexp"
	"strings"
)

// parseObserverVerdict parses the observer LLM's JSON reply
// defensively: garbage or low-entropy text is treated as CONTINUE
// with valid=false, matching the Python fallback behaviour rather
// than propagating a parse error up the stream.
func parseObserverVerdict(text string) (action, reason string, valid bool) {
	text = strings.TrimSpace(text)

	var parsed struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil && parsed.Action != "" {
		action = strings.ToUpper(parsed.Action)
		if action != "CONTINUE" && action != "INTERRUPT" {
			action = "CONTINUE"
		}
		return action, strings.TrimSpace(parsed.Reason), true
	}

	if repeatedNoisePattern.MatchString(text) || len(text) == 0 {
		return "CONTINUE", "", false
	}

	upper := strings.ToUpper(text)
	if strings.Contains(upper, "INTERRUPT:") || strings.HasPrefix(strings.TrimSpace(upper), "INTERRUPT") {
		parts := strings.SplitN(text, "INTERRUPT:", 2)
		reason = trim(strings.TrimSpace(lastOrSelf(parts)), 120)
		return "INTERRUPT", reason, true
	}

	return "CONTINUE", "", false
}

var repeatedNoisePattern = regexp.MustCompile(`([!?.\-,:;` + "`" + `~^*#@/\\])\1{10,}`)

func lastOrSelf(parts []string) string {
	if len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}
