package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacketIsValid(t *testing.T) {
	p := New("session-1", OriginUser, "hello there")
	require.NoError(t, p.Validate())
	assert.Equal(t, CurrentVersion, p.Version)
	assert.Equal(t, StateInitialized, p.Status.State)
}

func TestComputeHashesIsDeterministic(t *testing.T) {
	p1 := New("session-1", OriginUser, "hello")
	p1.Header.PacketID = "fixed-id"
	p1.Content.DataFields = []DataField{
		{Key: "probe", Type: "string", Value: "a"},
		{Key: "identity", Type: "string", Value: "b"},
	}

	p2 := New("session-1", OriginUser, "hello")
	p2.Header.PacketID = "fixed-id"
	p2.Header.Timestamp = p1.Header.Timestamp
	p2.Content.DataFields = []DataField{
		{Key: "probe", Type: "string", Value: "a"},
		{Key: "identity", Type: "string", Value: "b"},
	}

	require.NoError(t, p1.ComputeHashes())
	require.NoError(t, p2.ComputeHashes())
	assert.Equal(t, p1.Hashes.Content, p2.Hashes.Content)
}

func TestVerifyHashesDetectsMutation(t *testing.T) {
	p := New("session-1", OriginUser, "hello")
	require.NoError(t, p.ComputeHashes())

	p.Content.OriginalPrompt = "mutated"
	err := p.VerifyHashes()
	require.Error(t, err)
}

func TestAuditAndObserverTraceArePostHash(t *testing.T) {
	p := New("session-1", OriginUser, "hello")
	require.NoError(t, p.ComputeHashes())
	before := p.Hashes.Content

	p.Governance.Audit.Entries = append(p.Governance.Audit.Entries, "stage:probe completed")
	p.Status.ObserverTrace = append(p.Status.ObserverTrace, "CONTINUE")

	require.NoError(t, p.VerifyHashes())
	assert.Equal(t, before, p.Hashes.Content)
}

func TestTransitionEnforcesStateGraph(t *testing.T) {
	p := New("session-1", OriginUser, "hello")
	require.NoError(t, p.Transition(StateDispatched))
	require.NoError(t, p.Transition(StateGenerating))
	require.NoError(t, p.Transition(StateFinalized))
	assert.True(t, p.Status.Finalized)

	err := p.Transition(StateDispatched)
	require.Error(t, err)
}

func TestUpgradeFromV01IsIdempotent(t *testing.T) {
	raw := map[string]interface{}{
		"version": "0.1",
		"prompt":  "hi",
	}
	once, err := Upgrade(raw, "0.1")
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, once["version"])
	content := once["content"].(map[string]interface{})
	assert.Equal(t, "hi", content["original_prompt"])

	twice, err := Upgrade(once, CurrentVersion)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestAppendReflectionSingleShape(t *testing.T) {
	p := New("session-1", OriginUser, "hello")
	p.AppendReflection("probe", "found 2 candidate collections")
	require.Len(t, p.Reasoning.ReflectionLog, 1)
	assert.Equal(t, "probe", p.Reasoning.ReflectionLog[0].Step)
}
