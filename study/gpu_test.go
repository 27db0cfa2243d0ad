package study

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleGPUReleaseCancelsInFlightTraining(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("content"), 0o644))

	job := NewJob(TrainingConfig{AdapterName: "a", SourceDir: dir, MaxSteps: 1000}, &blockingTrainer{}, nil, DefaultAdapterLimits(), nil)
	coord := NewGPUCoordinator(nil)
	coord.Attach(job)

	done := make(chan error, 1)
	go func() { _, err := job.Run(context.Background()); done <- err }()
	for job.State() != StateTraining {
	}

	require.NoError(t, coord.HandleGPURelease(context.Background()))
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("training job did not cancel in time")
	}
}

func TestHandleGPUReadyResumesQueuedWork(t *testing.T) {
	coord := NewGPUCoordinator(nil)
	resumed := make(chan struct{})
	coord.Queue(func(ctx context.Context) { close(resumed) })

	require.NoError(t, coord.HandleGPUReady(context.Background()))
	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("queued resume was not invoked")
	}
}

func TestHandleGPUReadyNoopWhenNothingQueued(t *testing.T) {
	coord := NewGPUCoordinator(nil)
	assert.NoError(t, coord.HandleGPUReady(context.Background()))
}
