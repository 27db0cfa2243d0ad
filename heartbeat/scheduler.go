package heartbeat

import (
	"context"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaconfig"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
	"github.com/azraeltruthsay/gaia/orchestrator"
	"github.com/azraeltruthsay/gaia/packet"
)

// HeartbeatSessionID is the session id stamped on every heartbeat-
// initiated turn, kept internal the way the original's
// gaia_heartbeat_session constant is.
const HeartbeatSessionID = "gaia_heartbeat_session"

// BootDelay is how long Start waits before the first tick, letting
// models and services stabilize after process start.
const BootDelay = 60 * time.Second

const (
	defaultWakePollInterval    = 2 * time.Second
	defaultWakePollMaxAttempts = 90
	defaultSeedRevisitDays     = 7
)

// AgentCore is the narrow contract the heartbeat needs to run a full
// turn through the cognition orchestrator. *orchestrator.Orchestrator
// satisfies this directly.
type AgentCore interface {
	Run(ctx context.Context, sessionID string, origin packet.Origin, prompt string, emit func(orchestrator.StreamEvent) error) (*packet.CognitionPacket, error)
}

// TickResult summarizes one heartbeat cycle, mirroring the fields the
// original emits as a "heartbeat_tick" timeline event.
type TickResult struct {
	TickNumber         int
	SeedsFound         int
	Archived           int
	Deferred           int
	Acted              int
	JournalWritten     bool
	StateBaked         bool
	InterviewConducted bool
}

// Scheduler runs the heartbeat loop: triaging thought seeds and
// driving the per-tick temporal awareness tasks. Grounded on
// original_source/.../heartbeat.py's ThoughtSeedHeartbeat.
type Scheduler struct {
	Interval               time.Duration
	SeedRevisitDays         int
	BakeIntervalTicks       int
	InterviewIntervalTicks  int
	WakePollInterval        time.Duration
	WakePollMaxAttempts     int

	Seeds       Store
	TriageLLM   LLMBackend
	Agent       AgentCore
	Wake        *orchestrator.SleepWakeManager
	Journal     *Journal
	Temporal    *TemporalStateManager
	Interviewer *Interviewer
	Log         gaialog.Logger

	tickCount int
}

// New builds a Scheduler with spec defaults. Tick also falls back to
// those defaults for zero-valued SeedRevisitDays, BakeIntervalTicks,
// InterviewIntervalTicks and wake-poll fields; Start uses Interval as
// set, so a Scheduler built as a struct literal needs it positive.
func New() *Scheduler {
	return &Scheduler{
		Interval:               1200 * time.Second,
		SeedRevisitDays:        defaultSeedRevisitDays,
		BakeIntervalTicks:      3,
		InterviewIntervalTicks: 6,
		WakePollInterval:       defaultWakePollInterval,
		WakePollMaxAttempts:    defaultWakePollMaxAttempts,
		Log:                    gaialog.NoOp(),
	}
}

// NewFromConfig builds a Scheduler from the gaiaconfig.HeartbeatConfig
// ambient defaults, leaving the Seeds/TriageLLM/Agent/Wake/Journal/
// Temporal/Interviewer collaborators for the caller to wire.
func NewFromConfig(cfg gaiaconfig.HeartbeatConfig) *Scheduler {
	s := New()
	if cfg.IntervalSeconds > 0 {
		s.Interval = time.Duration(cfg.IntervalSeconds) * time.Second
	}
	if cfg.SeedRevisitDays > 0 {
		s.SeedRevisitDays = cfg.SeedRevisitDays
	}
	if cfg.BakeIntervalTicks > 0 {
		s.BakeIntervalTicks = cfg.BakeIntervalTicks
	}
	if cfg.InterviewIntervalTicks > 0 {
		s.InterviewIntervalTicks = cfg.InterviewIntervalTicks
	}
	return s
}

// Start runs the heartbeat loop until ctx is canceled: a boot delay,
// then one Tick per Interval. Idiomatic context-based cancellation
// (core.RedisDiscovery.StartHeartbeat's ticker+select pattern) stands
// in for the original's cooperative-flag thread loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.Log == nil {
		s.Log = gaialog.NoOp()
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(BootDelay):
		}

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			result := s.Tick(ctx)
			s.Log.Info("heartbeat tick complete", map[string]interface{}{
				"tick": result.TickNumber, "seeds_found": result.SeedsFound,
				"archived": result.Archived, "deferred": result.Deferred, "acted": result.Acted,
				"journal_written": result.JournalWritten, "state_baked": result.StateBaked,
				"interview_conducted": result.InterviewConducted,
			})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Tick runs one heartbeat cycle: promote overdue seeds, triage
// unreviewed seeds, then run the per-tick temporal tasks.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	s.tickCount++
	result := TickResult{TickNumber: s.tickCount}

	if s.Seeds != nil {
		if promoted, err := s.Seeds.PromoteDue(time.Now()); err != nil {
			s.Log.Warn("heartbeat: promote due seeds failed", map[string]interface{}{"error": err.Error()})
		} else if len(promoted) > 0 {
			s.Log.Info("heartbeat: promoted overdue pending seeds", map[string]interface{}{"count": len(promoted)})
		}

		seeds, err := s.Seeds.ListUnreviewed()
		if err != nil {
			s.Log.Warn("heartbeat: list unreviewed seeds failed", map[string]interface{}{"error": err.Error()})
		} else {
			result.SeedsFound = len(seeds)
			for _, seed := range seeds {
				s.triageOne(ctx, seed, &result)
			}
		}
	}

	result.JournalWritten, result.StateBaked, result.InterviewConducted = s.runTemporalTasks(ctx)
	return result
}

func (s *Scheduler) triageOne(ctx context.Context, seed *ThoughtSeed, result *TickResult) {
	decision, reason := Triage(ctx, s.TriageLLM, seed)
	seed.Reason = reason

	switch decision {
	case DecisionArchive:
		if err := s.Seeds.Archive(seed.ID); err != nil {
			s.Log.Warn("heartbeat: archive failed", map[string]interface{}{"id": seed.ID, "error": err.Error()})
		}
		result.Archived++
	case DecisionAct:
		s.act(ctx, seed)
		result.Acted++
	default:
		s.deferSeed(seed.ID)
		result.Deferred++
	}
}

func (s *Scheduler) deferSeed(id string) {
	revisit := time.Now().AddDate(0, 0, s.revisitDays())
	if err := s.Seeds.Defer(id, revisit); err != nil {
		s.Log.Warn("heartbeat: defer failed", map[string]interface{}{"id": id, "error": err.Error()})
	}
}

func (s *Scheduler) revisitDays() int {
	if s.SeedRevisitDays <= 0 {
		return defaultSeedRevisitDays
	}
	return s.SeedRevisitDays
}

// act expands an ACT-decision seed, ensures the orchestrator is ready
// to run a turn, executes it, and archives the seed on completion.
func (s *Scheduler) act(ctx context.Context, seed *ThoughtSeed) {
	expanded, err := ExpandSeed(ctx, s.TriageLLM, seed)
	if err != nil || expanded == "" {
		s.Log.Warn("heartbeat: expansion failed, deferring", map[string]interface{}{"id": seed.ID})
		s.deferSeed(seed.ID)
		return
	}

	if !s.ensureActive(ctx, seed.ID) {
		return
	}

	if s.Agent == nil {
		s.Log.Warn("heartbeat: no agent core, deferring seed", map[string]interface{}{"id": seed.ID})
		s.deferSeed(seed.ID)
		return
	}

	if _, err := s.Agent.Run(ctx, HeartbeatSessionID, packet.OriginHeartbeat, expanded, func(orchestrator.StreamEvent) error { return nil }); err != nil {
		s.Log.Error("heartbeat: run_turn failed", map[string]interface{}{"id": seed.ID, "error": err.Error()})
	}

	if err := s.Seeds.Archive(seed.ID); err != nil {
		s.Log.Warn("heartbeat: post-act archive failed", map[string]interface{}{"id": seed.ID, "error": err.Error()})
	}
}

// ensureActive gets the orchestrator into an ACTIVE state before a
// seed's turn runs: ACTIVE proceeds immediately, ASLEEP sends a wake
// signal and polls, DREAMING/DISTRACTED defer, OFFLINE skips.
func (s *Scheduler) ensureActive(ctx context.Context, seedID string) bool {
	if s.Wake == nil {
		return true
	}

	switch s.Wake.State() {
	case orchestrator.StateActive:
		return true
	case orchestrator.StateAsleep:
		s.Log.Info("heartbeat: waking for seed", map[string]interface{}{"id": seedID})
		s.Wake.ReceiveWakeSignal()
		interval := s.WakePollInterval
		if interval <= 0 {
			interval = defaultWakePollInterval
		}
		attempts := s.WakePollMaxAttempts
		if attempts <= 0 {
			attempts = defaultWakePollMaxAttempts
		}
		for i := 0; i < attempts; i++ {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(interval):
			}
			if s.Wake.State() == orchestrator.StateActive {
				return true
			}
		}
		s.Log.Warn("heartbeat: wake timed out, deferring seed", map[string]interface{}{"id": seedID})
		s.deferSeed(seedID)
		return false
	case orchestrator.StateDreaming, orchestrator.StateDistracted:
		s.Log.Info("heartbeat: runtime busy, deferring seed", map[string]interface{}{"id": seedID, "state": string(s.Wake.State())})
		s.deferSeed(seedID)
		return false
	case orchestrator.StateOffline:
		s.Log.Info("heartbeat: runtime offline, skipping seed", map[string]interface{}{"id": seedID})
		return false
	default: // DROWSY or unknown — defer to be safe
		s.deferSeed(seedID)
		return false
	}
}

// runTemporalTasks runs the journal write every tick, the state bake
// every BakeIntervalTicks ticks, and the past-self interview every
// InterviewIntervalTicks ticks (gated on the runtime being ACTIVE or
// DROWSY, so an interview never competes with a live conversation).
func (s *Scheduler) runTemporalTasks(ctx context.Context) (journalWritten, stateBaked, interviewConducted bool) {
	if s.Journal != nil {
		if entry := s.Journal.WriteEntry(ctx, s.tickCount); entry != "" {
			journalWritten = true
		}
	}

	bakeInterval := s.BakeIntervalTicks
	if bakeInterval <= 0 {
		bakeInterval = 3
	}
	if s.Temporal != nil && s.tickCount%bakeInterval == 0 {
		if _, err := s.Temporal.BakeState(s.tickCount); err == nil {
			stateBaked = true
		} else {
			s.Log.Warn("heartbeat: state bake failed", map[string]interface{}{"error": err.Error()})
		}
	}

	interviewInterval := s.InterviewIntervalTicks
	if interviewInterval <= 0 {
		interviewInterval = 6
	}
	if s.Interviewer != nil && s.tickCount > 0 && s.tickCount%interviewInterval == 0 {
		if s.interviewerShouldRun() {
			transcript, err := s.Interviewer.ConductInterview(ctx)
			if err != nil {
				s.Log.Error("heartbeat: interview failed", map[string]interface{}{"error": err.Error()})
			} else if transcript != nil {
				interviewConducted = true
				s.Log.Info("heartbeat: interview conducted", map[string]interface{}{"coherence": transcript.Coherence})
			}
		}
	}

	return journalWritten, stateBaked, interviewConducted
}

func (s *Scheduler) interviewerShouldRun() bool {
	if s.Wake == nil {
		return true
	}
	state := s.Wake.State()
	return state == orchestrator.StateActive || state == orchestrator.StateDrowsy
}
