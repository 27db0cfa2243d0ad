// Package intent implements GAIA's three-tier intent classification
// cascade: a reflex tier for hard-coded commands, a regex/NLU signal
// tier for fragmentation and tool-routing detection, and a model tier
// that asks a non-thinking LLM backend for a label and otherwise
// prefers an embedding-exemplar classifier over a keyword heuristic
// depending on what backend is available. The cascade stops
// at the first confident classification.
package intent

import (
	"context"
	"strings"
)

// Plan is the classifier's verdict for one turn.
type Plan struct {
	Intent   string `json:"intent"`
	ReadOnly bool   `json:"read_only"`
}

// readOnlyIntents are the explain/read family that never execute anything.
var readOnlyIntents = map[string]bool{
	"read_file": true, "explain": true, "list_files": true, "list_tree": true, "list_tools": true,
}

func planFor(label string) Plan {
	return Plan{Intent: label, ReadOnly: readOnlyIntents[label]}
}

// EmbeddingBackend is the narrow model contract Tier 3a needs: encode
// text into the same embedding space as the exemplar bank.
type EmbeddingBackend interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// LLMBackend is the narrow model contract Tier 3 tries first: a
// single-label completion call. Thinking is true when the backend is
// a reasoning-style model that would waste tokens on preamble — the
// cascade then skips the call and uses the embedding classifier
// (Tier 3a) if one is available, else the keyword heuristic (Tier 3b).
type LLMBackend interface {
	Thinking() bool
	ClassifyLabel(ctx context.Context, prompt string) (string, error)
}

// Classifier runs the full cascade.
type Classifier struct {
	Embedding EmbeddingBackend
	LLM       LLMBackend
	// EmbeddingThreshold is Tier 3a's minimum best-exemplar score.
	EmbeddingThreshold float64
	// exemplars lazily caches encoded exemplar vectors per label so
	// repeated calls don't re-embed the bank every turn.
	exemplars exemplarVectors
}

// NewClassifier builds a Classifier with spec.md §4.5's default threshold.
func NewClassifier(embedding EmbeddingBackend, llm LLMBackend) *Classifier {
	return &Classifier{Embedding: embedding, LLM: llm, EmbeddingThreshold: 0.45}
}

// Classify runs Tier 1 (reflex), Tier 2 (regex signals), then Tier 3
// (a non-thinking LLM backend if configured, otherwise the embedding
// classifier if available, with the keyword heuristic as the final
// fallback), stopping at the first confident result. probeContext is the
// semantic probe's primary collection hint, consulted only by the
// keyword heuristic's file-operation disambiguation.
func (c *Classifier) Classify(ctx context.Context, text, probeContext string) Plan {
	if label, ok := ReflexCheck(text); ok {
		return planFor(label)
	}

	if label, ok := SignalCheck(text); ok {
		return planFor(postFilter(label, text))
	}

	var label string
	if c.LLM != nil && !c.LLM.Thinking() {
		out, err := c.LLM.ClassifyLabel(ctx, text)
		if err == nil && out != "" {
			label = out
		}
	} else if c.Embedding != nil {
		if l, ok := c.classifyEmbedding(ctx, text); ok {
			label = l
		}
	}
	if label == "" {
		label = KeywordClassify(text, probeContext)
	}

	return planFor(postFilter(label, text))
}

// postFilter is spec.md §4.5's guard: a read_file/write_file
// classification without any file/log/path keyword in the input is
// spurious and downgrades to "other".
func postFilter(label, text string) string {
	if label != "read_file" && label != "write_file" {
		return label
	}
	lowered := strings.ToLower(text)
	markers := []string{"file", "log", "path", "/", ".txt", ".md", ".json", ".py", ".go"}
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return label
		}
	}
	return "other"
}
