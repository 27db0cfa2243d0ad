package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

type fakeLLM struct {
	thinking bool
	label    string
	calls    int
}

func (f *fakeLLM) Thinking() bool { return f.thinking }
func (f *fakeLLM) ClassifyLabel(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.label, nil
}

func TestReflexExitScenario(t *testing.T) {
	// spec.md §8 Scenario 1: "exit" classifies via reflex alone, no
	// LLM or embedding call.
	embed := &fakeEmbedder{}
	llm := &fakeLLM{label: "chat"}
	c := NewClassifier(embed, llm)

	plan := c.Classify(context.Background(), "exit", "")
	assert.Equal(t, "exit", plan.Intent)
	assert.Equal(t, 0, embed.calls)
	assert.Equal(t, 0, llm.calls)
}

func TestSignalTierFragmentation(t *testing.T) {
	c := NewClassifier(nil, nil)
	plan := c.Classify(context.Background(), "Can you recite the entire poem word for word?", "")
	assert.Equal(t, "fragmentation", plan.Intent)
}

func TestSignalTierToolRouting(t *testing.T) {
	c := NewClassifier(nil, nil)
	plan := c.Classify(context.Background(), "please call the weather tool for Boston", "")
	assert.Equal(t, "tool_routing", plan.Intent)
}

func TestLLMTierUsedWhenNotThinking(t *testing.T) {
	llm := &fakeLLM{thinking: false, label: "chat"}
	c := NewClassifier(nil, llm)
	plan := c.Classify(context.Background(), "just saying hello, nothing specific", "")
	assert.Equal(t, "chat", plan.Intent)
	assert.Equal(t, 1, llm.calls)
}

func TestThinkingLLMSkipsToKeywordWithoutEmbedding(t *testing.T) {
	llm := &fakeLLM{thinking: true, label: "chat"}
	c := NewClassifier(nil, llm)
	plan := c.Classify(context.Background(), "hello there", "")
	assert.Equal(t, "chat", plan.Intent)
	assert.Equal(t, 0, llm.calls)
}

func TestEmbeddingTierPrefersExemplarMatch(t *testing.T) {
	embed := &fakeEmbedder{vectors: map[string][]float64{
		"hello there, friend": {1, 0, 0},
		"hello there":         {1, 0, 0},
		"good morning":        {0.9, 0.1, 0},
		"how are you doing today": {0.8, 0.2, 0},
	}}
	llm := &fakeLLM{thinking: true}
	c := NewClassifier(embed, llm)
	plan := c.Classify(context.Background(), "hello there, friend", "")
	assert.Equal(t, "chat", plan.Intent)
}

func TestPostFilterDowngradesSpuriousFileIntent(t *testing.T) {
	llm := &fakeLLM{thinking: false, label: "read_file"}
	c := NewClassifier(nil, llm)
	plan := c.Classify(context.Background(), "tell me a fun fact", "")
	assert.Equal(t, "other", plan.Intent)
}

func TestKeywordClassifyCascadeOrder(t *testing.T) {
	assert.Equal(t, "write_file", KeywordClassify("please save this as a file", ""))
	assert.Equal(t, "correction", KeywordClassify("that's wrong, try again", ""))
	assert.Equal(t, "other", KeywordClassify("purple elephants dance slowly", ""))
}

func TestPlanReadOnlyFlag(t *testing.T) {
	p := planFor("read_file")
	require.True(t, p.ReadOnly)
	p2 := planFor("write_file")
	require.False(t, p2.ReadOnly)
}
