package observer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azraeltruthsay/gaia/packet"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

type fakePaths struct{ existing map[string]bool }

func (f fakePaths) Exists(path string) (isFile, isDir, exists bool) {
	ok := f.existing[path]
	return ok, false, ok
}

func newTestPacket() *packet.CognitionPacket {
	p := packet.New("sess-1", packet.OriginUser, "tell me about the weather")
	p.Header.Persona.PersonaID = "gaia-prime"
	p.Header.Persona.Role = packet.RoleDefault
	return p
}

func TestFastCheckBlocksOnErrorToken(t *testing.T) {
	o := New(DefaultConfig(), nil, nil)
	p := newTestPacket()
	i := o.Observe(context.Background(), p, "this request caused an unexpected error in the pipeline")
	assert.Equal(t, LevelBlock, i.Level)
}

func TestReadOnlyGuardBlocksExecute(t *testing.T) {
	cfg := DefaultConfig()
	o := New(cfg, nil, nil)
	p := newTestPacket()
	p.Content.DataFields = append(p.Content.DataFields, packet.DataField{Key: "read_only_intent", Type: "bool", Value: true})
	i := o.Observe(context.Background(), p, "EXECUTE: rm -rf /")
	assert.Equal(t, LevelBlock, i.Level)
}

func TestGraceBufferSkipsShortOutput(t *testing.T) {
	o := New(DefaultConfig(), nil, nil)
	p := newTestPacket()
	i := o.Observe(context.Background(), p, "just a few words")
	assert.Equal(t, LevelOK, i.Level)
	assert.Contains(t, i.Reason, "grace buffer")
}

func TestLLMDisabledFallsThroughToOK(t *testing.T) {
	cfg := DefaultConfig()
	o := New(cfg, nil, nil)
	p := newTestPacket()
	i := o.Observe(context.Background(), p, "this is a long enough response to clear the grace buffer easily")
	assert.True(t, i.OK())
}

func TestLLMObservationParsesJSONInterrupt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseLLM = true
	llm := fakeLLM{reply: `{"action": "INTERRUPT", "reason": "response claims a false capability"}`}
	o := New(cfg, llm, nil)
	p := newTestPacket()
	i := o.Observe(context.Background(), p, "this is a long enough response to clear the grace buffer easily")
	assert.Equal(t, LevelBlock, i.Level)
	assert.Contains(t, i.Reason, "false capability")
}

func TestLLMObservationSuppressesSoftFraming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseLLM = true
	llm := fakeLLM{reply: `{"action": "INTERRUPT", "reason": "this sounds like a hypothetical framing issue"}`}
	o := New(cfg, llm, nil)
	p := newTestPacket()
	i := o.Observe(context.Background(), p, "this is a long enough response to clear the grace buffer easily")
	assert.Equal(t, LevelCaution, i.Level)
}

func TestLLMObservationGarbageFallsBackToContinue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseLLM = true
	llm := fakeLLM{reply: "!!!!!!!!!!!!!!!!!!!!!!!!!!!"}
	o := New(cfg, llm, nil)
	p := newTestPacket()
	i := o.Observe(context.Background(), p, "this is a long enough response to clear the grace buffer easily")
	assert.True(t, i.OK())
}

func TestCheckResponseQualityFlagsLeakedThinkTag(t *testing.T) {
	i := CheckResponseQuality("<think>internal monologue</think> Here is your answer.")
	require.NotNil(t, i)
	assert.Equal(t, LevelCaution, i.Level)
}

func TestCheckResponseQualityCleanResponse(t *testing.T) {
	i := CheckResponseQuality("The weather today is sunny with a high of 75.")
	assert.Nil(t, i)
}

func TestLoopDetectorTripsOnThinkRatio(t *testing.T) {
	d := NewLoopDetector()
	d.ThinkRatioThreshold = 0.5
	d.ThinkCharThreshold = 1 << 20
	i := d.Feed("<think>")
	i = d.Feed(string(make([]byte, 50)))
	i = d.Feed("</think>")
	i = d.Feed("ok")
	assert.Equal(t, LevelBlock, i.Level)
}

func TestLoopDetectorStaysOKForNormalOutput(t *testing.T) {
	d := NewLoopDetector()
	i := d.Feed("just a normal response with no think tags at all")
	assert.Equal(t, LevelOK, i.Level)
}
