package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
)

// BakedState is a point-in-time snapshot of Lite's temporal context:
// metadata describing what was baked, not the model's raw weights or
// KV cache (GAIA's inference engine is an external collaborator per
// spec.md §1, so this repo has no handle on it to snapshot). The
// original bakes an actual KV cache to disk; here the state a
// past-self interview needs to stay coherent — the journal digest and
// tick number — is what gets persisted.
type BakedState struct {
	Path          string    `yaml:"-"`
	TickCount     int       `yaml:"tick_count"`
	CreatedAt     time.Time `yaml:"created_at"`
	JournalDigest string    `yaml:"journal_digest"`
	Interviewed   bool      `yaml:"interviewed"`
}

// TemporalStateManager bakes and tracks BakedStates on the schedule
// the Heartbeat Scheduler drives. Grounded on SPEC_FULL.md §7 /
// spec.md §4.9 step 5's "state bake every N ticks" description.
type TemporalStateManager struct {
	Dir     string
	Journal *Journal

	mu     sync.Mutex
	states []*BakedState
}

// NewTemporalStateManager builds a manager rooted at dir, creating it
// if necessary.
func NewTemporalStateManager(dir string, journal *Journal) (*TemporalStateManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, gaiaerr.New("heartbeat.NewTemporalStateManager", "heartbeat", err)
	}
	return &TemporalStateManager{Dir: dir, Journal: journal}, nil
}

// BakeState snapshots the current journal digest and persists it,
// returning the file path written.
func (m *TemporalStateManager) BakeState(tickCount int) (string, error) {
	digest := ""
	if m.Journal != nil {
		recent := m.Journal.Recent(3)
		for _, e := range recent {
			digest += e.Text + " "
		}
	}

	state := &BakedState{TickCount: tickCount, CreatedAt: time.Now(), JournalDigest: digest}
	filename := fmt.Sprintf("state_%06d.yaml", tickCount)
	path := filepath.Join(m.Dir, filename)
	state.Path = path

	data, err := yaml.Marshal(state)
	if err != nil {
		return "", gaiaerr.New("heartbeat.BakeState", "heartbeat", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", gaiaerr.New("heartbeat.BakeState", "heartbeat", err)
	}

	m.mu.Lock()
	m.states = append(m.states, state)
	m.mu.Unlock()
	return path, nil
}

// OldestUninterviewed returns the earliest baked state not yet used
// in a past-self interview, or nil if every state has been used.
func (m *TemporalStateManager) OldestUninterviewed() *BakedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.states {
		if !s.Interviewed {
			return s
		}
	}
	return nil
}

// MarkInterviewed flags state as consumed by a past-self interview.
func (m *TemporalStateManager) MarkInterviewed(state *BakedState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.Interviewed = true
}
