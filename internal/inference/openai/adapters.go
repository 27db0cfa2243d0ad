package openai

import (
	"context"

	"github.com/azraeltruthsay/gaia/promptbuilder"
)

// Stream satisfies orchestrator.InferenceBackend directly on *Client,
// since the orchestrator is the only caller that needs a full
// role-tagged message list rather than a bare prompt.
func (c *Client) Stream(ctx context.Context, messages []promptbuilder.Message, onToken func(token string) error) error {
	var system string
	converted := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == promptbuilder.RoleSystem && system == "" {
			system = m.Content
			continue
		}
		converted = append(converted, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return c.stream(ctx, system, converted, onToken)
}

// ObserverBackend adapts *Client onto observer.LLMBackend's single-
// argument Complete(ctx, prompt) signature.
type ObserverBackend struct{ *Client }

func (b ObserverBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.complete(ctx, "", prompt)
}

// HeartbeatBackend adapts *Client onto heartbeat.LLMBackend's two-
// argument Complete(ctx, systemPrompt, userPrompt) signature, and
// swaps in the Lite model since heartbeat triage/expansion/journal
// tasks are explicitly Lite's job (spec.md §4.9).
type HeartbeatBackend struct{ *Client }

func (b HeartbeatBackend) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	lite := *b.Client
	if lite.LiteModel != "" {
		lite.Model = lite.LiteModel
	}
	return lite.complete(ctx, systemPrompt, userPrompt)
}

// IntentBackend adapts *Client onto both intent.LLMBackend (Tier 3)
// and intent.EmbeddingBackend (Tier 3a) — the same client plays both
// roles because OpenAI exposes one embeddings endpoint and one chat
// endpoint behind one API key.
type IntentBackend struct{ *Client }

func (b IntentBackend) Thinking() bool { return b.ThinkingModel }

func (b IntentBackend) ClassifyLabel(ctx context.Context, prompt string) (string, error) {
	return b.complete(ctx, "Respond with exactly one intent label, nothing else.", prompt)
}

func (b IntentBackend) Embed(ctx context.Context, text string) ([]float64, error) {
	return b.embed(ctx, text)
}

// VectorEmbedder adapts *Client onto vectorstore.Embedder for the
// Study Worker's index-build path.
type VectorEmbedder struct{ *Client }

func (b VectorEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return b.embed(ctx, text)
}
