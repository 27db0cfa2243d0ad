package intent

import "strings"

// exitCommands are handled with no model call whatsoever.
var exitCommands = map[string]bool{"exit": true, "quit": true, "bye": true}

// ReflexCheck implements Tier 1: exact-match or prefix match for
// hard-coded commands (exit, help, ls/cat/pwd, explicit find/locate +
// filename markers). O(1), no model call.
func ReflexCheck(text string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))

	if exitCommands[lowered] {
		return "exit", true
	}
	if lowered == "" || lowered == "h" || strings.HasPrefix(lowered, "help") {
		return "help", true
	}
	if strings.HasPrefix(lowered, "ls ") || strings.HasPrefix(lowered, "cat ") || strings.HasPrefix(lowered, "pwd") {
		return "shell", true
	}
	if isReadFileRequest(lowered) {
		return "read_file", true
	}
	if hasAny(lowered, "find", "locate", "search") && hasAny(lowered, "dev_matrix", "dev matrix", "file") {
		return "find_file", true
	}
	return "", false
}

func isReadFileRequest(lowered string) bool {
	readKeywords := []string{"read", "open", "show me", "cat ", "display", "view"}
	fileMarkers := []string{".txt", ".md", ".json", ".py", ".go", ".log", "/"}
	if hasAny(lowered, readKeywords...) && hasAny(lowered, fileMarkers...) {
		return true
	}
	return hasAny(lowered, readKeywords...) && strings.Contains(lowered, "file")
}

func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
