package promptbuilder

import (
	"strings"

	"github.com/azraeltruthsay/gaia/packet"
)

// roleAliases maps arbitrary upstream role labels onto the four roles
// an LLM chat completion recognizes.
var roleAliases = map[string]Role{
	"system":    RoleSystem,
	"user":      RoleUser,
	"human":     RoleUser,
	"assistant": RoleAssistant,
	"ai":        RoleAssistant,
	"gaia":      RoleAssistant,
	"tool":      RoleTool,
	"function":  RoleTool,
}

func normalizeRole(raw string) Role {
	if r, ok := roleAliases[strings.ToLower(raw)]; ok {
		return r
	}
	return RoleUser
}

// NormalizeHistory maps arbitrary role labels to {system, user,
// assistant, tool}, collapses consecutive user/tool messages, and
// ensures the first non-system message is a user message (inserting
// an empty one if the history opens with an assistant turn).
func NormalizeHistory(snippets []packet.RelevantHistorySnippet) []Message {
	if len(snippets) == 0 {
		return nil
	}

	var out []Message
	for _, s := range snippets {
		role := normalizeRole(s.Role)
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Role == role && (role == RoleUser || role == RoleTool) {
				last.Content = last.Content + "\n" + s.Summary
				continue
			}
		}
		out = append(out, Message{Role: role, Content: s.Summary})
	}

	firstNonSystem := 0
	for firstNonSystem < len(out) && out[firstNonSystem].Role == RoleSystem {
		firstNonSystem++
	}
	if firstNonSystem < len(out) && out[firstNonSystem].Role != RoleUser {
		inserted := append([]Message{}, out[:firstNonSystem]...)
		inserted = append(inserted, Message{Role: RoleUser, Content: ""})
		inserted = append(inserted, out[firstNonSystem:]...)
		out = inserted
	}

	return out
}

// fitHistory adds history items oldest-first from the already-reversed
// relevance list, dropping items once the remaining budget is
// exhausted. remaining is decremented in place.
func fitHistory(history []Message, counter TokenCounter, remaining *int) []Message {
	var fitted []Message
	for _, m := range history {
		cost := counter.Count(m.Content)
		if cost > *remaining {
			break
		}
		fitted = append(fitted, m)
		*remaining -= cost
	}
	return fitted
}
