package fabric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCore struct {
	releaseErr error
	reclaimErr error
	released   bool
	reclaimed  bool
}

func (f *fakeCore) ReleaseGPU(ctx context.Context) error {
	f.released = true
	return f.releaseErr
}
func (f *fakeCore) ReclaimGPU(ctx context.Context) error {
	f.reclaimed = true
	return f.reclaimErr
}

type fakeStudy struct {
	readyErr error
	signaled bool
}

func (f *fakeStudy) SignalGPUReady(ctx context.Context) error {
	f.signaled = true
	return f.readyErr
}

type steppedMonitor struct {
	readings []int
	i        int
}

func (m *steppedMonitor) UsedMB(ctx context.Context) (int, error) {
	v := m.readings[m.i]
	if m.i < len(m.readings)-1 {
		m.i++
	}
	return v, nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Broadcast(category string, data map[string]interface{}) {
	n.events = append(n.events, category)
}

// Scenario 7: GPU handoff success.
func TestRequestHandoffSucceedsAfterPollingClean(t *testing.T) {
	core := &fakeCore{}
	study := &fakeStudy{}
	monitor := &steppedMonitor{readings: []int{900, 700, 300}}
	notify := &recordingNotifier{}

	cfg := GPUManagerConfig{PollInterval: time.Millisecond, CleanThreshold: 500, HandoffTimeout: time.Second}
	mgr := NewGPUManager(cfg, monitor, core, study, notify, nil)

	err := mgr.RequestHandoff(context.Background())
	require.NoError(t, err)

	assert.True(t, core.released)
	assert.True(t, study.signaled)
	assert.Equal(t, StateAcquired, mgr.State())
	assert.Equal(t, 3, monitor.i+1, "polled 3 times before dropping below threshold")
	assert.Contains(t, notify.events, "gpu_acquired")
	assert.Contains(t, notify.events, "handoff_completed")
}

func TestRequestHandoffFailsWhenCoreReleaseErrors(t *testing.T) {
	core := &fakeCore{releaseErr: assertError("core down")}
	study := &fakeStudy{}
	notify := &recordingNotifier{}
	mgr := NewGPUManager(DefaultGPUManagerConfig(), Unavailable{}, core, study, notify, nil)

	err := mgr.RequestHandoff(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateIdle, mgr.State())
	assert.False(t, study.signaled)
	assert.Contains(t, notify.events, "handoff_failed")
	assert.Contains(t, notify.events, "oracle_fallback")
}

func TestRequestHandoffBusyWhenAlreadyInFlight(t *testing.T) {
	core := &fakeCore{}
	study := &fakeStudy{}
	mgr := NewGPUManager(DefaultGPUManagerConfig(), Unavailable{}, core, study, nil, nil)
	mgr.state = StateAcquired

	err := mgr.RequestHandoff(context.Background())
	assert.Error(t, err)
}

func TestReleaseBackReturnsToIdle(t *testing.T) {
	core := &fakeCore{}
	study := &fakeStudy{}
	notify := &recordingNotifier{}
	mgr := NewGPUManager(DefaultGPUManagerConfig(), Unavailable{}, core, study, notify, nil)
	mgr.state = StateAcquired

	require.NoError(t, mgr.ReleaseBack(context.Background()))
	assert.True(t, core.reclaimed)
	assert.Equal(t, StateIdle, mgr.State())
	assert.Contains(t, notify.events, "gpu_released")
}

func TestPollUntilCleanDegradesWhenMonitorUnavailable(t *testing.T) {
	core := &fakeCore{}
	study := &fakeStudy{}
	mgr := NewGPUManager(GPUManagerConfig{PollInterval: time.Millisecond, CleanThreshold: 500, HandoffTimeout: time.Second}, Unavailable{}, core, study, nil, nil)

	err := mgr.RequestHandoff(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAcquired, mgr.State())
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertError(msg string) error { return simpleErr(msg) }
