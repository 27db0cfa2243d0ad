package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) Complete(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

func TestTriageKnowledgeGapFastPathsToAct(t *testing.T) {
	seed := &ThoughtSeed{ID: "kg1", Type: SeedKnowledgeGap, Created: time.Now()}
	decision, reason := Triage(context.Background(), fakeLLM{reply: "ARCHIVE\nnope"}, seed)
	assert.Equal(t, DecisionAct, decision)
	assert.Contains(t, reason, "Knowledge gap")
}

func TestTriageParsesFirstLine(t *testing.T) {
	seed := &ThoughtSeed{ID: "s1", Type: SeedGeneral, Created: time.Now()}

	decision, reason := Triage(context.Background(), fakeLLM{reply: "ACT\nworth pursuing now"}, seed)
	assert.Equal(t, DecisionAct, decision)
	assert.Equal(t, "worth pursuing now", reason)

	decision, _ = Triage(context.Background(), fakeLLM{reply: "archive\ndead end"}, seed)
	assert.Equal(t, DecisionArchive, decision)
}

func TestTriageDefaultsToPendingOnGarbage(t *testing.T) {
	seed := &ThoughtSeed{ID: "s2", Type: SeedGeneral, Created: time.Now()}
	decision, _ := Triage(context.Background(), fakeLLM{reply: "who knows"}, seed)
	assert.Equal(t, DecisionPending, decision)
}

func TestTriageDefaultsToPendingOnLLMError(t *testing.T) {
	seed := &ThoughtSeed{ID: "s3", Type: SeedGeneral, Created: time.Now()}
	decision, reason := Triage(context.Background(), fakeLLM{err: assertErr{}}, seed)
	assert.Equal(t, DecisionPending, decision)
	assert.Equal(t, "LLM call failed", reason)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestExpandSeedReturnsTrimmedText(t *testing.T) {
	seed := &ThoughtSeed{ID: "s4", Seed: "look into caching"}
	out, err := ExpandSeed(context.Background(), fakeLLM{reply: "  Investigate the cache layer.  "}, seed)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("Investigate the cache layer.", out)
}
