package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCandidatePhrases(t *testing.T) {
	phrases := ExtractCandidatePhrases("Check on the Jade Phoenix Order and AC 15 logs.")
	assert.Contains(t, phrases, "Jade Phoenix Order")
	assert.Contains(t, phrases, "AC 15")
	assert.NotContains(t, phrases, "Check")
	assert.NotContains(t, phrases, "logs")
}

func TestExtractCandidatePhrasesEmpty(t *testing.T) {
	assert.Empty(t, ExtractCandidatePhrases(""))
	assert.Empty(t, ExtractCandidatePhrases("   "))
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, ShouldSkip("exit"))
	assert.True(t, ShouldSkip(""))
	assert.True(t, ShouldSkip("hi"))
	assert.False(t, ShouldSkip("tell me about the Jade Phoenix Order"))
}

type fakeReader struct {
	results []QueryResult
}

func (f *fakeReader) Query(ctx context.Context, phrase string, topK int) ([]QueryResult, error) {
	return f.results, nil
}

func TestProbeShortCircuit(t *testing.T) {
	p := NewProber(map[string]Reader{"dnd": &fakeReader{}}, nil)
	result := p.Probe(context.Background(), "sess-1", "hi")
	assert.Empty(t, result.PhrasesTested)
	assert.False(t, result.HasHits())
}

func TestProbePrimaryCollection(t *testing.T) {
	p := NewProber(map[string]Reader{
		"dnd_campaign": &fakeReader{results: []QueryResult{
			{Text: "the jade phoenix order founded the tower", Score: 0.9, Filename: "lore.md"},
		}},
		"research": &fakeReader{results: []QueryResult{
			{Text: "unrelated research note", Score: 0.41, Filename: "notes.md"},
		}},
	}, nil)

	result := p.Probe(context.Background(), "sess-2", "Tell me about the Jade Phoenix Order please")
	require.True(t, result.HasHits())
	assert.Equal(t, "dnd_campaign", result.PrimaryCollection)
	assert.Contains(t, result.SupplementalCollections, "research")
}

func TestSessionCacheEviction(t *testing.T) {
	c := NewSessionCache(2)
	c.Put("foo", []Hit{{Phrase: "foo"}})
	c.AdvanceTurn()
	c.AdvanceTurn()
	_, ok := c.Get("foo")
	assert.True(t, ok)
	c.AdvanceTurn()
	_, ok = c.Get("foo")
	assert.False(t, ok)
}
