package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azraeltruthsay/gaia/packet"
	"github.com/azraeltruthsay/gaia/promptbuilder"
)

type fakeInference struct {
	tokens []string
}

func (f fakeInference) Stream(ctx context.Context, messages []promptbuilder.Message, onToken func(string) error) error {
	for _, t := range f.tokens {
		if err := onToken(t); err != nil {
			return err
		}
	}
	return nil
}

type repeatingInference struct {
	sentence string
	repeats  int
}

func (r repeatingInference) Stream(ctx context.Context, messages []promptbuilder.Message, onToken func(string) error) error {
	for i := 0; i < r.repeats; i++ {
		if err := onToken(r.sentence); err != nil {
			return err
		}
	}
	return nil
}

func TestRunCompletesWithoutCollaborators(t *testing.T) {
	o := New()
	o.Inference = fakeInference{tokens: []string{"Hello", " there.", " All done."}}

	var events []StreamEvent
	p, err := o.Run(context.Background(), "sess-1", packet.OriginUser, "hi", func(e StreamEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, packet.StateFinalized, p.Status.State)
	assert.Contains(t, p.Response.Candidate, "All done.")

	lastKind := events[len(events)-1].Kind
	assert.Equal(t, EventCompleted, lastKind)
}

func TestRunAbortsOnSentenceRepetition(t *testing.T) {
	o := New()
	o.MaxSentenceRepeat = 2
	o.Inference = repeatingInference{sentence: "I am stuck.", repeats: 5}

	var interrupted bool
	p, err := o.Run(context.Background(), "sess-2", packet.OriginUser, "loop please", func(e StreamEvent) error {
		if e.Kind == EventInterruption {
			interrupted = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, interrupted)
	assert.Equal(t, packet.StateAborted, p.Status.State)
}

func TestRunWithNoInferenceStillFinalizes(t *testing.T) {
	o := New()
	p, err := o.Run(context.Background(), "sess-3", packet.OriginSystem, "heartbeat turn", func(e StreamEvent) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, packet.StateFinalized, p.Status.State)
}

type fakePersona struct{}

func (fakePersona) Resolve(intentLabel, probeContext string) packet.Persona {
	return packet.Persona{Role: packet.RolePrime, PersonaID: "gaia-prime"}
}

func TestPersonaResolutionAppliesToHeader(t *testing.T) {
	o := New()
	o.Persona = fakePersona{}
	o.Inference = fakeInference{tokens: []string{"ok."}}

	p, err := o.Run(context.Background(), "sess-4", packet.OriginUser, "who are you", func(e StreamEvent) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, packet.RolePrime, p.Header.Persona.Role)
}
