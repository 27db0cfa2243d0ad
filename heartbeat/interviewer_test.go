package heartbeat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConductInterviewReturnsNilWithoutBakedState(t *testing.T) {
	mgr, err := NewTemporalStateManager(t.TempDir(), nil)
	require.NoError(t, err)
	iv := &Interviewer{Prime: fakeLLM{reply: "q"}, PastSelf: fakeLLM{reply: "a"}, Temporal: mgr}

	transcript, err := iv.ConductInterview(context.Background())
	require.NoError(t, err)
	assert.Nil(t, transcript)
}

func TestConductInterviewRunsRoundsAndScoresCoherence(t *testing.T) {
	journal := NewJournal(fakeLLM{reply: "I spent the tick thinking about caching and coherence."}, 10)
	journal.WriteEntry(context.Background(), 1)

	mgr, err := NewTemporalStateManager(t.TempDir(), journal)
	require.NoError(t, err)
	_, err = mgr.BakeState(1)
	require.NoError(t, err)

	iv := &Interviewer{
		Prime:    fakeLLM{reply: "What were you thinking about?"},
		PastSelf: fakeLLM{reply: "I was thinking about caching and coherence in the system."},
		Temporal: mgr,
	}

	transcript, err := iv.ConductInterview(context.Background())
	require.NoError(t, err)
	require.NotNil(t, transcript)
	assert.Equal(t, 1, transcript.StateTick)
	assert.NotEmpty(t, transcript.Questions)
	assert.NotEmpty(t, transcript.Answers)
	assert.Greater(t, transcript.Coherence, 0.0)

	assert.Nil(t, mgr.OldestUninterviewed(), "state should be marked interviewed after use")
}

func TestConductInterviewStopsEarlyOnShortAnswer(t *testing.T) {
	mgr, err := NewTemporalStateManager(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = mgr.BakeState(2)
	require.NoError(t, err)

	iv := &Interviewer{
		Prime:    fakeLLM{reply: "Next question?"},
		PastSelf: fakeLLM{reply: "Not sure."},
		Temporal: mgr,
	}

	transcript, err := iv.ConductInterview(context.Background())
	require.NoError(t, err)
	require.NotNil(t, transcript)
	assert.Len(t, transcript.Answers, minInterviewRounds, "should stop at the minimum once answers trail off")
}
