package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azraeltruthsay/gaia/internal/gaiaconfig"
	"github.com/azraeltruthsay/gaia/orchestrator"
	"github.com/azraeltruthsay/gaia/packet"
)

func TestNewFromConfigAppliesOverrides(t *testing.T) {
	cfg := gaiaconfig.HeartbeatConfig{IntervalSeconds: 30, SeedRevisitDays: 2, BakeIntervalTicks: 5, InterviewIntervalTicks: 9}
	s := NewFromConfig(cfg)
	assert.Equal(t, 30*time.Second, s.Interval)
	assert.Equal(t, 2, s.SeedRevisitDays)
	assert.Equal(t, 5, s.BakeIntervalTicks)
	assert.Equal(t, 9, s.InterviewIntervalTicks)
}

type fakeAgent struct {
	calls []string
}

func (a *fakeAgent) Run(_ context.Context, _ string, _ packet.Origin, prompt string, emit func(orchestrator.StreamEvent) error) (*packet.CognitionPacket, error) {
	a.calls = append(a.calls, prompt)
	_ = emit(orchestrator.StreamEvent{Kind: orchestrator.EventCompleted})
	return packet.New("sess", packet.OriginHeartbeat, prompt), nil
}

func newScheduler(t *testing.T) (*Scheduler, *FileStore) {
	t.Helper()
	store := newTestStore(t)
	s := New()
	s.Seeds = store
	s.WakePollInterval = time.Millisecond
	s.WakePollMaxAttempts = 2
	return s, store
}

func TestTickArchivesOnArchiveDecision(t *testing.T) {
	s, store := newScheduler(t)
	s.TriageLLM = fakeLLM{reply: "ARCHIVE\nstale"}
	require.NoError(t, store.Save(&ThoughtSeed{ID: "a1", Seed: "old idea", Status: SeedUnreviewed, Created: time.Now()}))

	result := s.Tick(context.Background())
	assert.Equal(t, 1, result.SeedsFound)
	assert.Equal(t, 1, result.Archived)

	listed, err := store.ListUnreviewed()
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestTickDefersOnPendingDecision(t *testing.T) {
	s, store := newScheduler(t)
	s.TriageLLM = fakeLLM{reply: "PENDING\nmaybe later"}
	require.NoError(t, store.Save(&ThoughtSeed{ID: "p1", Seed: "idea", Status: SeedUnreviewed, Created: time.Now()}))

	result := s.Tick(context.Background())
	assert.Equal(t, 1, result.Deferred)
}

func TestTickActsAndRunsAgentWhenActive(t *testing.T) {
	s, store := newScheduler(t)
	s.TriageLLM = fakeLLM{reply: "ACT\nworth doing\nExpanded prompt for this seed."}
	agent := &fakeAgent{}
	s.Agent = agent
	s.Wake = orchestrator.NewSleepWakeManager()
	require.NoError(t, store.Save(&ThoughtSeed{ID: "act1", Seed: "build the thing", Status: SeedUnreviewed, Created: time.Now()}))

	result := s.Tick(context.Background())
	assert.Equal(t, 1, result.Acted)
	require.Len(t, agent.calls, 1)
}

func TestTickActDefersWhenAsleepAndWakeTimesOut(t *testing.T) {
	s, store := newScheduler(t)
	s.TriageLLM = fakeLLM{reply: "ACT\nworth doing\nExpanded prompt."}
	agent := &fakeAgent{}
	s.Agent = agent
	s.Wake = orchestrator.NewSleepWakeManager()
	s.Wake.SetState(orchestrator.StateAsleep)
	require.NoError(t, store.Save(&ThoughtSeed{ID: "act2", Seed: "seed", Status: SeedUnreviewed, Created: time.Now()}))

	result := s.Tick(context.Background())
	assert.Equal(t, 1, result.Acted, "still counted as the act branch even though the run itself was deferred")
	assert.Empty(t, agent.calls, "agent should never run while wake polling times out")
}

func TestTickSkipsActWhenOffline(t *testing.T) {
	s, store := newScheduler(t)
	s.TriageLLM = fakeLLM{reply: "ACT\nworth doing\nExpanded prompt."}
	agent := &fakeAgent{}
	s.Agent = agent
	s.Wake = orchestrator.NewSleepWakeManager()
	s.Wake.SetState(orchestrator.StateOffline)
	require.NoError(t, store.Save(&ThoughtSeed{ID: "act3", Seed: "seed", Status: SeedUnreviewed, Created: time.Now()}))

	s.Tick(context.Background())
	assert.Empty(t, agent.calls)
}

func TestRunTemporalTasksRespectsIntervals(t *testing.T) {
	s, _ := newScheduler(t)
	s.Journal = NewJournal(fakeLLM{reply: "a quiet tick"}, 10)
	mgr, err := NewTemporalStateManager(t.TempDir(), s.Journal)
	require.NoError(t, err)
	s.Temporal = mgr
	s.BakeIntervalTicks = 3

	s.tickCount = 1
	_, baked, _ := s.runTemporalTasks(context.Background())
	assert.False(t, baked)

	s.tickCount = 3
	_, baked, _ = s.runTemporalTasks(context.Background())
	assert.True(t, baked)
}
