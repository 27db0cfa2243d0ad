package orchestrator

import "sync"

// GaiaState is the cognition runtime's wake state. It gates whether a
// heartbeat-originated ACT seed may run a turn immediately, must be
// deferred, or is skipped outright. Recovered from
// original_source/.../sleep_wake_manager.py; spec.md §4.9 names "wake
// if ASLEEP" but not the full enum (SPEC_FULL.md §7).
type GaiaState string

const (
	StateActive     GaiaState = "active"
	StateDrowsy     GaiaState = "drowsy"
	StateAsleep     GaiaState = "asleep"
	StateDreaming   GaiaState = "dreaming"
	StateDistracted GaiaState = "distracted"
	StateOffline    GaiaState = "offline"
)

// WakeDecision tells the heartbeat scheduler what to do with an ACT
// seed given the current state.
type WakeDecision string

const (
	WakeRunNow WakeDecision = "run_now"
	WakeDefer  WakeDecision = "defer"
	WakeSkip   WakeDecision = "skip"
)

// SleepWakeManager is a small mutex-guarded state machine the
// Heartbeat Scheduler consults before running an ACT seed's turn.
type SleepWakeManager struct {
	mu    sync.Mutex
	state GaiaState
}

// NewSleepWakeManager starts the runtime ACTIVE.
func NewSleepWakeManager() *SleepWakeManager {
	return &SleepWakeManager{state: StateActive}
}

// State returns the current wake state.
func (m *SleepWakeManager) State() GaiaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState forces a transition, used by the fabric/GPU handoff path
// and by tests; the heartbeat scheduler itself only reads state and
// calls ReceiveWakeSignal.
func (m *SleepWakeManager) SetState(s GaiaState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// ReceiveWakeSignal nudges an ASLEEP runtime toward ACTIVE without
// blocking: it moves to DROWSY only. Reaching ACTIVE, which the
// heartbeat scheduler's State() poll waits for, takes a later Decide
// or SetState call. Mirrors the
// original's receive_wake_signal, which the heartbeat scheduler calls
// before its own poll loop rather than through Decide.
func (m *SleepWakeManager) ReceiveWakeSignal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAsleep {
		m.state = StateDrowsy
	}
}

// Decide returns what the heartbeat scheduler should do with an ACT
// seed given the current state: ACTIVE/DROWSY run immediately (waking
// DROWSY to ACTIVE first), ASLEEP wakes and runs, DREAMING/DISTRACTED
// defer until the next tick, OFFLINE skips entirely.
func (m *SleepWakeManager) Decide() WakeDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateActive, StateDrowsy:
		m.state = StateActive
		return WakeRunNow
	case StateAsleep:
		m.state = StateActive
		return WakeRunNow
	case StateDreaming, StateDistracted:
		return WakeDefer
	case StateOffline:
		return WakeSkip
	default:
		return WakeDefer
	}
}
