// Package study implements the Study Worker: the sole writer for its
// assigned knowledge bases' vector indexes (wrapping vectorstore.Indexer),
// plus the adapter-training state machine run in "Study Mode". Grounded
// on original_source/candidates/gaia-study/gaia_study/study_mode_manager.py;
// spec.md §4.11.
package study

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// TrainingState is one position in the adapter-training state machine.
type TrainingState string

const (
	StateIdle       TrainingState = "IDLE"
	StatePreparing  TrainingState = "PREPARING"
	StateValidating TrainingState = "VALIDATING"
	StateTraining   TrainingState = "TRAINING"
	StateLoading    TrainingState = "LOADING"
	StateComplete   TrainingState = "COMPLETE"
	StateFailed     TrainingState = "FAILED"
)

// Tier names an adapter-count governance scope.
type Tier string

const (
	TierGlobal  Tier = "global"
	TierUser    Tier = "user"
	TierSession Tier = "session"
)

// TrainingConfig describes one adapter-training request, mirroring
// the Study HTTP surface's `POST /study/start` body (spec.md §6).
type TrainingConfig struct {
	AdapterName        string   `json:"adapter_name"`
	Tier               Tier     `json:"tier"`
	Pillar             string   `json:"pillar"`
	SourceDir          string   `json:"source_dir"`
	MaxSteps           int      `json:"max_steps"`
	MaxSamples         int      `json:"max_samples"`
	ForbiddenPatterns  []string `json:"forbidden_patterns"`
	MaxDocSizeBytes    int      `json:"max_doc_size_bytes"`
	ActivationTriggers []string `json:"activation_triggers"`
}

// TrainingSample is one instruction-formatted example derived from a
// source document.
type TrainingSample struct {
	Kind       string // direct_recall | completion | knowledge_retrieval
	Instruction string
	Response   string
	SourceFile string
}

// AdapterLimits caps the number of adapters a tier may hold
// concurrently (governance config, spec.md §4.11 step 2).
type AdapterLimits struct {
	Global  int
	User    int
	Session int
}

func (l AdapterLimits) limitFor(t Tier) int {
	switch t {
	case TierUser:
		return l.User
	case TierSession:
		return l.Session
	default:
		return l.Global
	}
}

// DefaultAdapterLimits mirrors the original's conservative defaults.
func DefaultAdapterLimits() AdapterLimits {
	return AdapterLimits{Global: 8, User: 4, Session: 2}
}

// AdapterCounter reports how many adapters already exist in a tier,
// so Validate can enforce AdapterLimits without this package owning
// adapter storage itself.
type AdapterCounter interface {
	Count(tier Tier) (int, error)
}

// Trainer is the external training collaborator (out of scope per
// spec.md §1 — "LLM inference engines" and fine-tuning internals are
// external). TrainStep runs one optimizer step and returns the
// running loss; the caller drives the step loop so it can honor
// MaxSteps and a cancellation signal.
type Trainer interface {
	TrainStep(ctx context.Context, samples []TrainingSample, step int) (loss float64, err error)
}

// Result is the adapter-training job's final record. load assembles it
// in the LOADING state without writing any file; Worker.StartTraining
// saves it through AdapterStore after Run returns, when Adapters is set.
type Result struct {
	AdapterName        string
	Tier               Tier
	Pillar             string
	ActivationTriggers []string
	SourceDocHashes    map[string]string
	TrainingDuration    time.Duration
	FinalLoss          float64
	SampleCount        int
	State              TrainingState
	FailureReason      string
}

// Job runs one adapter-training request through the state machine.
// Progress is exposed via Job.State()/Progress() for the
// `GET /study/status` endpoint.
type Job struct {
	Config  TrainingConfig
	Trainer Trainer
	Counter AdapterCounter
	Limits  AdapterLimits
	Log     gaialog.Logger

	mu       sync.Mutex
	state    TrainingState
	progress float64
	result   *Result
	cancel   context.CancelFunc
}

// NewJob builds a Job in the IDLE state.
func NewJob(cfg TrainingConfig, trainer Trainer, counter AdapterCounter, limits AdapterLimits, log gaialog.Logger) *Job {
	if log == nil {
		log = gaialog.NoOp()
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 500
	}
	if cfg.MaxDocSizeBytes <= 0 {
		cfg.MaxDocSizeBytes = 1 << 20 // 1MB
	}
	return &Job{Config: cfg, Trainer: trainer, Counter: counter, Limits: limits, Log: log, state: StateIdle}
}

// State returns the job's current state, safe for concurrent status polling.
func (j *Job) State() TrainingState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Progress returns a 0.0-1.0 completion fraction.
func (j *Job) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Result returns the final record once the job reaches COMPLETE or
// FAILED; nil otherwise.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) setState(s TrainingState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) setProgress(p float64) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

// Run drives the full IDLE → PREPARING → VALIDATING → TRAINING →
// LOADING → COMPLETE | FAILED sequence. Run is idempotent: calling it
// again after COMPLETE/FAILED returns the cached Result without
// repeating work (spec.md §4.11 step 5).
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if r := j.Result(); r != nil {
		return r, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()
	defer cancel()

	samples, hashes, err := j.prepare()
	if err != nil {
		return j.fail(err)
	}

	if err := j.validate(); err != nil {
		return j.fail(err)
	}

	loss, duration, err := j.train(ctx, samples)
	if err != nil {
		return j.fail(err)
	}

	result := j.load(samples, hashes, loss, duration)
	j.mu.Lock()
	j.state = StateComplete
	j.result = result
	j.progress = 1.0
	j.mu.Unlock()
	return result, nil
}

// Cancel stops an in-flight training run (used by the GPU-release
// cooperation path); it is a no-op once the job has left TRAINING.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *Job) fail(err error) (*Result, error) {
	j.mu.Lock()
	j.state = StateFailed
	j.result = &Result{AdapterName: j.Config.AdapterName, Tier: j.Config.Tier, State: StateFailed, FailureReason: err.Error()}
	j.mu.Unlock()
	j.Log.Error("study: training job failed", map[string]interface{}{"adapter": j.Config.AdapterName, "error": err.Error()})
	return j.result, err
}

// prepare walks Config.SourceDir, validates each document against the
// forbidden-pattern list and size limit, and derives training samples
// capped at Config.MaxSamples.
func (j *Job) prepare() ([]TrainingSample, map[string]string, error) {
	j.setState(StatePreparing)

	entries, err := os.ReadDir(j.Config.SourceDir)
	if err != nil {
		return nil, nil, gaiaerr.New("study.Job.prepare", "study", err)
	}

	var samples []TrainingSample
	hashes := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || len(samples) >= j.Config.MaxSamples {
			continue
		}
		path := filepath.Join(j.Config.SourceDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if int(info.Size()) > j.Config.MaxDocSizeBytes {
			j.Log.Warn("study: skipping oversized document", map[string]interface{}{"path": path, "size": info.Size()})
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		text := string(data)
		if violatesForbidden(text, j.Config.ForbiddenPatterns) {
			j.Log.Warn("study: skipping document matching forbidden pattern", map[string]interface{}{"path": path})
			continue
		}

		sum := sha256.Sum256(data)
		hashes[e.Name()] = hex.EncodeToString(sum[:])

		for _, s := range deriveSamples(e.Name(), text) {
			if len(samples) >= j.Config.MaxSamples {
				break
			}
			samples = append(samples, s)
		}
	}

	return samples, hashes, nil
}

func violatesForbidden(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// validate enforces AdapterLimits for the job's tier.
func (j *Job) validate() error {
	j.setState(StateValidating)
	if j.Counter == nil {
		return nil
	}
	count, err := j.Counter.Count(j.Config.Tier)
	if err != nil {
		return gaiaerr.New("study.Job.validate", "study", err)
	}
	limit := j.Limits.limitFor(j.Config.Tier)
	if limit > 0 && count >= limit {
		return gaiaerr.New("study.Job.validate", "study", fmt.Errorf("adapter tier %q at capacity (%d/%d)", j.Config.Tier, count, limit))
	}
	return nil
}

// train runs Trainer up to Config.MaxSteps, emitting Progress after
// each step.
func (j *Job) train(ctx context.Context, samples []TrainingSample) (loss float64, duration time.Duration, err error) {
	j.setState(StateTraining)
	if j.Trainer == nil {
		return 0, 0, gaiaerr.New("study.Job.train", "study", fmt.Errorf("no trainer configured"))
	}

	maxSteps := j.Config.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 1
	}

	start := time.Now()
	for step := 1; step <= maxSteps; step++ {
		select {
		case <-ctx.Done():
			return 0, time.Since(start), ctx.Err()
		default:
		}
		l, err := j.Trainer.TrainStep(ctx, samples, step)
		if err != nil {
			return 0, time.Since(start), gaiaerr.New("study.Job.train", "study", err)
		}
		loss = l
		j.setProgress(float64(step) / float64(maxSteps))
	}
	return loss, time.Since(start), nil
}

// load assembles the adapter's metadata record (the metadata spec.md
// §4.11 step 4 lists) and writes no files: adapter weights are left to
// the Trainer collaborator (out of scope, spec.md §1), and the record
// is persisted only by Worker.StartTraining through AdapterStore.
func (j *Job) load(samples []TrainingSample, hashes map[string]string, loss float64, duration time.Duration) *Result {
	j.setState(StateLoading)
	return &Result{
		AdapterName:        j.Config.AdapterName,
		Tier:               j.Config.Tier,
		Pillar:             j.Config.Pillar,
		ActivationTriggers: j.Config.ActivationTriggers,
		SourceDocHashes:    hashes,
		TrainingDuration:   duration,
		FinalLoss:          loss,
		SampleCount:        len(samples),
		State:              StateComplete,
	}
}
