// Package promptbuilder assembles an LLM-ready, role-tagged message
// list from an enriched CognitionPacket, within the packet's declared
// token budget. The fourteen system-prompt tiers are concatenated in a
// fixed priority order, tiers with no content are omitted, and compact
// mode suppresses the identity/memory tiers outright for internal,
// non-conversational phases. The budget decides only how much of the
// conversation summary and history follows the system prompt; no
// system-prompt tier is dropped for budget.
package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/azraeltruthsay/gaia/packet"
)

// Role is one of the four roles an LLM chat completion recognizes.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one role-tagged entry in the final prompt.
type Message struct {
	Role    Role
	Content string
}

// DefaultReservedResponseTokens is the reserved-for-completion buffer
// Build subtracts from every budget.
const DefaultReservedResponseTokens = 1024

// defaultMaxTokens is used when constraints.max_tokens is unset.
const defaultMaxTokens = 8192

// compactTaskKeys trigger compact mode: identity and memory-helper
// tiers are dropped to save tokens during internal cognition phases.
var compactTaskKeys = map[string]bool{
	"initial_planning":   true,
	"reflect":            true,
	"execution_feedback": true,
	"reflector_review":   true,
	"self_review":        true,
}

// TaskInstructions is the named table Tier 6 draws from;
// taskInstruction falls back to the generic "" entry when a key isn't
// registered.
var TaskInstructions = map[string]string{
	"":                   "Respond helpfully and directly to the user's message.",
	"generate_draft":     "Produce a draft response for later review; do not address the user directly.",
	"reflect":            "Reflect on the prior turn's reasoning and note anything worth revising.",
	"initial_planning":   "Plan the steps needed to satisfy this request before producing any output.",
	"execution_feedback": "Summarize the outcome of the executed plan in one or two sentences.",
	"reflector_review":   "Review the draft response for correctness and tone before it is sent.",
	"self_review":        "Check your own prior answer for errors or omissions.",
}

func taskInstruction(key string) string {
	if v, ok := TaskInstructions[key]; ok && v != "" {
		return v
	}
	return TaskInstructions[""]
}

// SafetyDirective is Tier 3's fixed text, overridable per deployment.
var SafetyDirective = "Operate within the bounds of the current session's safety mode. " +
	"Never produce content that facilitates real-world harm."

// EpistemicHonestyDirective is Tier 4: unconditional, every turn.
var EpistemicHonestyDirective = strings.Join([]string{
	"Never cite a document path that was not retrieved or previously read this session.",
	"Never fabricate a blockquote or direct quotation.",
	"Distinguish material drawn from the knowledge base from material drawn from general knowledge.",
	"If the answer is not known, say so rather than inventing one.",
	"Do not echo a user's unverified claim back as if it were confirmed.",
}, "\n")

// LanguageConstraint is Tier 5's default text.
var LanguageConstraint = "Respond in English only, unless the user has asked for translation."

// Builder assembles prompts from packets. WorldState and SummaryStore
// are narrow collaborator interfaces so the builder doesn't
// depend on the orchestrator's concrete session/world-state types.
type Builder struct {
	Counter     TokenCounter
	WorldState  WorldStateProvider
	SummaryStore SummaryStore
}

// TokenCounter estimates the token cost of a string. A word-count
// heuristic is the default; a real tokenizer can be substituted
// without touching assembly logic.
type TokenCounter interface {
	Count(text string) int
}

// WorldStateProvider supplies the compact external world-state
// snapshot for Tier 7.
type WorldStateProvider interface {
	Snapshot(sessionID string) string
}

// SummaryStore supplies the long-term conversation summary for a
// session, keyed externally and consulted only if it fits the budget.
type SummaryStore interface {
	Summary(sessionID string) (string, bool)
}

// New builds a Builder with the default heuristic token counter.
func New(worldState WorldStateProvider, summary SummaryStore) *Builder {
	return &Builder{Counter: WordCountEstimator{}, WorldState: worldState, SummaryStore: summary}
}

// Build produces the ordered message list for p, honoring its
// declared token budget. taskInstructionKey selects Tier 6's text and
// also determines whether compact mode applies.
func (b *Builder) Build(p *packet.CognitionPacket, taskInstructionKey string) []Message {
	compact := compactTaskKeys[taskInstructionKey]

	maxTokens := p.Context.Constraints.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	reserved := DefaultReservedResponseTokens

	system := b.assembleSystemPrompt(p, taskInstructionKey, compact)
	sFixed := b.Counter.Count(system) + b.Counter.Count(p.Content.OriginalPrompt)
	remaining := maxTokens - sFixed - reserved

	messages := []Message{{Role: RoleSystem, Content: system}}

	if !compact && remaining > 0 && b.SummaryStore != nil {
		if summary, ok := b.SummaryStore.Summary(p.Header.SessionID); ok && summary != "" {
			cost := b.Counter.Count(summary)
			if cost <= remaining {
				messages = append(messages, Message{Role: RoleSystem, Content: "Conversation summary: " + summary})
				remaining -= cost
			}
		}
	}

	history := NormalizeHistory(p.Context.RelevantHistory)
	history = fitHistory(history, b.Counter, &remaining)
	messages = append(messages, history...)

	messages = append(messages, Message{Role: RoleUser, Content: p.Content.OriginalPrompt})
	return messages
}

// assembleSystemPrompt concatenates tiers 1-14 in spec order, omitting
// any tier whose content is empty and skipping identity/memory tiers
// entirely in compact mode.
func (b *Builder) assembleSystemPrompt(p *packet.CognitionPacket, taskInstructionKey string, compact bool) string {
	var tiers []string

	if !compact {
		if identity := identityBlock(p); identity != "" {
			tiers = append(tiers, identity)
		}
		tiers = append(tiers, personaAnchor(p))
	}

	tiers = append(tiers, SafetyDirective)
	tiers = append(tiers, EpistemicHonestyDirective)
	tiers = append(tiers, LanguageConstraint)
	tiers = append(tiers, taskInstruction(taskInstructionKey))

	if b.WorldState != nil {
		if snap := b.WorldState.Snapshot(p.Header.SessionID); snap != "" {
			tiers = append(tiers, "World state: "+snap)
		}
	}

	if kb, domain := knowledgeBaseBlock(p); kb != "" {
		tiers = append(tiers, fmt.Sprintf("Knowledge base: %s\n%s", kb, domain))
	}

	if probeSummary := semanticProbeSummary(p); probeSummary != "" {
		tiers = append(tiers, probeSummary)
	}

	if retrieval := retrievedDocumentsBlock(p); retrieval != "" {
		tiers = append(tiers, retrieval)
	}

	if !compact {
		if hints := memoryHelperHints(p); hints != "" {
			tiers = append(tiers, hints)
		}
		if sheets := cheatsheetsBlock(p); sheets != "" {
			tiers = append(tiers, sheets)
		}
	}

	tiers = append(tiers, renderPacketContext(p))

	if loopCtx := loopRecoveryContext(p); loopCtx != "" {
		tiers = append(tiers, loopCtx)
	}

	nonEmpty := tiers[:0]
	for _, t := range tiers {
		if strings.TrimSpace(t) != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
