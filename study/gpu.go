package study

import (
	"context"
	"sync"

	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// GPUCoordinator implements the Study side of the GPU-handoff
// protocol Fabric drives (spec.md §4.10/§4.11): on a release request,
// cancel any in-flight training job and acknowledge; on a ready
// signal, resume queued training if there is any.
type GPUCoordinator struct {
	Log gaialog.Logger

	mu      sync.Mutex
	current *Job
	queued  func(ctx context.Context)
}

// NewGPUCoordinator builds a GPUCoordinator with no job attached.
func NewGPUCoordinator(log gaialog.Logger) *GPUCoordinator {
	if log == nil {
		log = gaialog.NoOp()
	}
	return &GPUCoordinator{Log: log}
}

// Attach registers the job currently (or about to be) training, so
// HandleGPURelease knows what to cancel.
func (g *GPUCoordinator) Attach(j *Job) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = j
}

// Queue registers a resume function HandleGPUReady invokes once the
// GPU is available again; nil clears any pending queue.
func (g *GPUCoordinator) Queue(resume func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queued = resume
}

// HandleGPURelease answers POST /study/gpu-release: cancel the
// in-progress job (if any) and acknowledge immediately. Study never
// blocks Fabric's handoff waiting for its own cleanup — Job.Cancel
// triggers cooperative cancellation via context, the same pattern
// internal/resilience's Retry uses for ctx.Done().
func (g *GPUCoordinator) HandleGPURelease(ctx context.Context) error {
	g.mu.Lock()
	current := g.current
	g.mu.Unlock()

	if current != nil && current.State() == StateTraining {
		g.Log.Info("study: cancelling in-flight training for gpu release", map[string]interface{}{"adapter": current.Config.AdapterName})
		current.Cancel()
	}
	return nil
}

// HandleGPUReady answers POST /study/gpu-ready: acknowledge
// immediately if nothing is queued, otherwise resume the queued
// training job.
func (g *GPUCoordinator) HandleGPUReady(ctx context.Context) error {
	g.mu.Lock()
	resume := g.queued
	g.queued = nil
	g.mu.Unlock()

	if resume != nil {
		go resume(ctx)
	}
	return nil
}
