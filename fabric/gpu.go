// Package fabric implements the Orchestrator Fabric: the service that
// coordinates GPU ownership handoff between Core and Study, fans out
// notifications over WebSocket, and polls container health for the
// live and candidate service stacks. Grounded on
// original_source/gaia-orchestrator/gaia_orchestrator/gpu_manager.py
// and notification_manager.py; spec.md §4.10.
package fabric

import (
	"context"
	"sync"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// HandoffState is one position in the GPU ownership state machine.
type HandoffState string

const (
	StateIdle             HandoffState = "IDLE"
	StateReleaseRequested HandoffState = "RELEASE_REQUESTED"
	StateReleased         HandoffState = "RELEASED"
	StateAcquired         HandoffState = "ACQUIRED"
)

// GPUMonitor reports GPU memory usage. The real implementation reads
// NVML; its absence is a Capability Missing condition (spec.md §7),
// not a fatal error — GPUManager degrades by skipping the poll loop
// and treating the GPU as already clean.
type GPUMonitor interface {
	UsedMB(ctx context.Context) (int, error)
}

// Unavailable is a GPUMonitor that always reports the NVML collaborator
// as missing, used when the runtime has no GPU or no NVML bindings.
type Unavailable struct{}

func (Unavailable) UsedMB(ctx context.Context) (int, error) {
	return 0, gaiaerr.New("fabric.GPUMonitor", "fabric", gaiaerr.ErrCoreUnreachable).WithID("nvml")
}

// CoreClient is the narrow contract Fabric needs against Core's GPU
// endpoints.
type CoreClient interface {
	ReleaseGPU(ctx context.Context) error
	ReclaimGPU(ctx context.Context) error
}

// StudyClient is the narrow contract Fabric needs against Study's GPU
// endpoints.
type StudyClient interface {
	SignalGPUReady(ctx context.Context) error
}

// Notifier is the narrow contract GPUManager needs to emit handoff
// events; *Broadcaster satisfies it.
type Notifier interface {
	Broadcast(category string, data map[string]interface{})
}

// GPUManagerConfig carries the handoff's tunables, spec.md §4.10 +
// §6 defaults.
type GPUManagerConfig struct {
	PollInterval    time.Duration // default 1s
	CleanThreshold  int           // MB, default 500
	HandoffTimeout  time.Duration // default 30s
}

// DefaultGPUManagerConfig returns spec.md's stated defaults.
func DefaultGPUManagerConfig() GPUManagerConfig {
	return GPUManagerConfig{
		PollInterval:   1 * time.Second,
		CleanThreshold: 500,
		HandoffTimeout: 30 * time.Second,
	}
}

// GPUManager drives the IDLE → RELEASE_REQUESTED → RELEASED → ACQUIRED
// → IDLE state machine. Exactly one handoff runs at a time; a second
// RequestHandoff call while one is in flight fails with ErrGPUBusy.
type GPUManager struct {
	Config  GPUManagerConfig
	Monitor GPUMonitor
	Core    CoreClient
	Study   StudyClient
	Notify  Notifier
	Log     gaialog.Logger

	mu    sync.Mutex
	state HandoffState
}

// NewGPUManager builds a GPUManager in the IDLE state.
func NewGPUManager(cfg GPUManagerConfig, monitor GPUMonitor, core CoreClient, study StudyClient, notify Notifier, log gaialog.Logger) *GPUManager {
	if log == nil {
		log = gaialog.NoOp()
	}
	if monitor == nil {
		monitor = Unavailable{}
	}
	return &GPUManager{Config: cfg, Monitor: monitor, Core: core, Study: study, Notify: notify, Log: log, state: StateIdle}
}

// State returns the handoff's current position.
func (g *GPUManager) State() HandoffState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// RequestHandoff runs the full release → poll-clean → acquire sequence
// scenario 7 describes: Study requests the GPU, Core releases it,
// Fabric polls NVML until clean or timeout, then signals Study ready.
func (g *GPUManager) RequestHandoff(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateIdle {
		g.mu.Unlock()
		return gaiaerr.New("GPUManager.RequestHandoff", "fabric", gaiaerr.ErrGPUBusy)
	}
	g.state = StateReleaseRequested
	g.mu.Unlock()

	if err := g.Core.ReleaseGPU(ctx); err != nil {
		g.fail(ctx, "core release failed", err)
		return err
	}

	clean, err := g.pollUntilClean(ctx)
	if err != nil || !clean {
		if err == nil {
			err = gaiaerr.New("GPUManager.RequestHandoff", "fabric", gaiaerr.ErrHandoffTimeout)
		}
		g.fail(ctx, "gpu cleanup poll failed", err)
		return err
	}

	g.setState(StateReleased)

	if err := g.Study.SignalGPUReady(ctx); err != nil {
		g.fail(ctx, "study gpu-ready signal failed", err)
		return err
	}

	g.setState(StateAcquired)
	g.notify("gpu_acquired", map[string]interface{}{"state": string(StateAcquired)})
	g.notify("handoff_completed", nil)
	return nil
}

// ReleaseBack runs the Study → Core return leg: Fabric signals Core's
// /gpu/reclaim and the state machine returns to IDLE.
func (g *GPUManager) ReleaseBack(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateAcquired {
		g.mu.Unlock()
		return gaiaerr.New("GPUManager.ReleaseBack", "fabric", gaiaerr.ErrGPUBusy)
	}
	g.mu.Unlock()

	if err := g.Core.ReclaimGPU(ctx); err != nil {
		g.fail(ctx, "core reclaim failed", err)
		return err
	}
	g.setState(StateIdle)
	g.notify("gpu_released", map[string]interface{}{"state": string(StateIdle)})
	return nil
}

// pollUntilClean polls Monitor.UsedMB every Config.PollInterval until
// it drops below Config.CleanThreshold or Config.HandoffTimeout
// elapses. A monitor that always errors (NVML unavailable) is treated
// as "already clean" after one failed attempt — capability-missing
// degrades rather than blocking a handoff forever.
func (g *GPUManager) pollUntilClean(ctx context.Context) (bool, error) {
	interval := g.Config.PollInterval
	if interval <= 0 {
		interval = 1 * time.Second
	}
	timeout := g.Config.HandoffTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	threshold := g.Config.CleanThreshold
	if threshold <= 0 {
		threshold = 500
	}

	deadline := time.Now().Add(timeout)
	for {
		usedMB, err := g.Monitor.UsedMB(ctx)
		if err != nil {
			g.Log.Warn("fabric: gpu monitor unavailable, treating as clean", map[string]interface{}{"error": err.Error()})
			return true, nil
		}
		if usedMB < threshold {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (g *GPUManager) setState(s HandoffState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

func (g *GPUManager) fail(ctx context.Context, reason string, err error) {
	g.Log.Error("fabric: gpu handoff failed", map[string]interface{}{"reason": reason, "error": err.Error()})
	g.setState(StateIdle)
	g.notify("handoff_failed", map[string]interface{}{"reason": reason})
	g.notify("oracle_fallback", map[string]interface{}{"reason": reason})
}

func (g *GPUManager) notify(category string, data map[string]interface{}) {
	if g.Notify != nil {
		g.Notify.Broadcast(category, data)
	}
}
