package promptbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azraeltruthsay/gaia/packet"
)

type fakeWorldState struct{ snapshot string }

func (f fakeWorldState) Snapshot(sessionID string) string { return f.snapshot }

type fakeSummaryStore struct {
	text string
	ok   bool
}

func (f fakeSummaryStore) Summary(sessionID string) (string, bool) { return f.text, f.ok }

func TestBuildIncludesFixedTiers(t *testing.T) {
	p := packet.New("sess-1", packet.OriginUser, "What's the weather like?")
	b := New(fakeWorldState{}, fakeSummaryStore{})

	messages := b.Build(p, "")
	require.NotEmpty(t, messages)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "Never fabricate a blockquote")
	assert.Contains(t, messages[len(messages)-1].Content, "weather")
	assert.Equal(t, RoleUser, messages[len(messages)-1].Role)
}

func TestCompactModeOmitsIdentityAndPersona(t *testing.T) {
	p := packet.New("sess-2", packet.OriginSystem, "plan the next step")
	p.Content.DataFields = append(p.Content.DataFields, packet.DataField{
		Key: "identity_excerpt", Type: "string", Value: "GAIA is a cognitive runtime.",
	})
	b := New(fakeWorldState{}, fakeSummaryStore{})

	messages := b.Build(p, "initial_planning")
	assert.NotContains(t, messages[0].Content, "GAIA is a cognitive runtime")
	assert.NotContains(t, messages[0].Content, "You are GAIA")
}

func TestNoResultsDirectiveWhenKBConfiguredButEmpty(t *testing.T) {
	p := packet.New("sess-3", packet.OriginUser, "tell me about the jade phoenix order")
	p.Content.DataFields = append(p.Content.DataFields, packet.DataField{
		Key: "knowledge_base_name", Type: "string", Value: "campaign-notes",
	})
	b := New(fakeWorldState{}, fakeSummaryStore{})

	messages := b.Build(p, "")
	assert.Contains(t, messages[0].Content, "Do not invent document content")
}

func TestNormalizeHistoryCollapsesConsecutiveUserMessages(t *testing.T) {
	history := []packet.RelevantHistorySnippet{
		{Role: "human", Summary: "first"},
		{Role: "human", Summary: "second"},
		{Role: "ai", Summary: "reply"},
	}
	out := NormalizeHistory(history)
	require.Len(t, out, 2)
	assert.Equal(t, RoleUser, out[0].Role)
	assert.Contains(t, out[0].Content, "first")
	assert.Contains(t, out[0].Content, "second")
	assert.Equal(t, RoleAssistant, out[1].Role)
}

func TestNormalizeHistoryInsertsUserWhenHistoryOpensWithAssistant(t *testing.T) {
	history := []packet.RelevantHistorySnippet{
		{Role: "assistant", Summary: "opening remark"},
	}
	out := NormalizeHistory(history)
	require.Len(t, out, 2)
	assert.Equal(t, RoleUser, out[0].Role)
	assert.Equal(t, "", out[0].Content)
	assert.Equal(t, RoleAssistant, out[1].Role)
}

func TestWordCountEstimator(t *testing.T) {
	c := WordCountEstimator{}
	assert.Equal(t, 0, c.Count(""))
	assert.Greater(t, c.Count("five words right here now"), 4)
}
