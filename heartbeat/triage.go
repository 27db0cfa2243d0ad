package heartbeat

import (
	"context"
	"strings"
)

// LLMBackend is the narrow completion contract the heartbeat's
// lightweight (Lite) triage, expansion, journal, and interview tasks
// need. Shaped the same way observer.LLMBackend and
// orchestrator.InferenceBackend are: a minimal interface so no
// concrete provider package is imported here.
type LLMBackend interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// TriageDecision is Lite's verdict on a dormant thought seed.
type TriageDecision string

const (
	DecisionArchive TriageDecision = "archive"
	DecisionPending TriageDecision = "pending"
	DecisionAct     TriageDecision = "act"
)

const triageSystemPrompt = `You are GAIA's thought seed triage system. You will be shown a thought seed — a dormant idea that was generated during a previous conversation.

Respond with EXACTLY one of these words on the first line:
  ARCHIVE — This seed is no longer relevant, too vague, or not worth pursuing.
  PENDING — This seed has potential but should be revisited later.
  ACT     — This seed is actionable and worth expanding on right now.

On the second line, write a single sentence justifying your decision.`

const expandSystemPrompt = `You are GAIA's thought seed expansion system. Given a thought seed and its context, expand it into a clear, actionable prompt that GAIA can process through her cognitive loop. The prompt should be specific, grounded, and self-contained — it will be fed directly into GAIA's reasoning engine.

Write ONLY the expanded prompt, nothing else.`

// Triage asks llm to classify seed, defaulting to PENDING on any parse
// or call failure. Knowledge-gap seeds skip the LLM call entirely and
// fast-path to ACT.
func Triage(ctx context.Context, llm LLMBackend, seed *ThoughtSeed) (TriageDecision, string) {
	if seed.Type == SeedKnowledgeGap {
		return DecisionAct, "Knowledge gap — auto-routing to research"
	}
	if llm == nil {
		return DecisionPending, "no triage LLM configured"
	}

	userPrompt := "Thought seed: " + seed.Seed + "\nCreated: " + seed.Created.Format("2006-01-02T15:04:05Z")
	text, err := llm.Complete(ctx, triageSystemPrompt, userPrompt)
	if err != nil {
		return DecisionPending, "LLM call failed"
	}

	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	first := strings.ToUpper(strings.TrimSpace(lines[0]))
	reason := ""
	if len(lines) > 1 {
		reason = strings.TrimSpace(lines[1])
	}

	switch first {
	case "ARCHIVE":
		return DecisionArchive, reason
	case "ACT":
		return DecisionAct, reason
	default:
		return DecisionPending, reason
	}
}

// ExpandSeed asks llm to turn a dormant seed into a self-contained
// prompt GAIA's cognition orchestrator can run a turn on.
func ExpandSeed(ctx context.Context, llm LLMBackend, seed *ThoughtSeed) (string, error) {
	if llm == nil {
		return "", nil
	}
	userPrompt := "Thought seed: " + seed.Seed
	text, err := llm.Complete(ctx, expandSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
