// Package resilience implements the circuit breaker and retry patterns
// GAIA's inter-service calls (fabric's handoff to core/study,
// gaia-web's calls to core, study's calls to the external trainer) run
// through. The state machine and sliding-window error-rate evaluation
// follow the framework's production circuit breaker; GAIA trims it to
// a single mutex-guarded window instead of per-field atomics, since
// none of GAIA's call sites need lock-free hot-path throughput.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// CircuitState is one of closed, open, half-open.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MetricsCollector receives circuit breaker state-change events.
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name, errorType string)
	RecordStateChange(name string, from, to CircuitState)
	RecordRejection(name string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSuccess(string)                       {}
func (noopMetrics) RecordFailure(string, string)                {}
func (noopMetrics) RecordStateChange(string, CircuitState, CircuitState) {}
func (noopMetrics) RecordRejection(string)                      {}

// ErrorClassifier decides whether err should count toward the
// breaker's error rate.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier excludes configuration, not-found, and
// context-cancellation errors: those are caller mistakes or a caller
// giving up, not infrastructure instability, so they shouldn't trip
// the breaker.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if gaiaerr.IsConfigurationError(err) || gaiaerr.IsNotFound(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Config configures a CircuitBreaker.
type Config struct {
	Name             string
	ErrorThreshold   float64       // error rate (0..1) that opens the breaker
	VolumeThreshold  int           // minimum requests in the window before evaluating
	SleepWindow      time.Duration // how long to stay open before probing
	HalfOpenRequests int           // number of probe requests allowed while half-open
	SuccessThreshold float64       // success rate in half-open needed to close
	WindowSize       time.Duration // rolling window duration for the error rate
	ErrorClassifier  ErrorClassifier
	Logger           gaialog.Logger
	Metrics          MetricsCollector
}

// DefaultConfig matches the framework's production defaults.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		ErrorThreshold:   0.5,
		VolumeThreshold:  10,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 5,
		SuccessThreshold: 0.6,
		WindowSize:       60 * time.Second,
		ErrorClassifier:  DefaultErrorClassifier,
		Metrics:          noopMetrics{},
	}
}

// window is a simple decaying counter pair: counts older than
// WindowSize are dropped wholesale on the next evaluation rather than
// bucketed, trading precision for simplicity.
type window struct {
	resetAt  time.Time
	success  int
	failure  int
}

// CircuitBreaker guards a single named dependency.
type CircuitBreaker struct {
	cfg   *Config
	mu    sync.Mutex
	state CircuitState
	win   window

	stateChangedAt time.Time
	halfOpenInFlight int
	halfOpenSuccess  int
	halfOpenFailure  int

	listeners []func(name string, from, to CircuitState)
}

// New creates a CircuitBreaker from cfg (DefaultConfig("default") when
// cfg is nil), filling a nil ErrorClassifier, nil Metrics and zero
// WindowSize with DefaultConfig's values; the other fields are used
// as given.
func New(cfg *Config) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultConfig("default")
	}
	if cfg.ErrorClassifier == nil {
		cfg.ErrorClassifier = DefaultErrorClassifier
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 60 * time.Second
	}
	return &CircuitBreaker{
		cfg:            cfg,
		state:          StateClosed,
		win:            window{resetAt: time.Now()},
		stateChangedAt: time.Now(),
	}
}

// AddStateChangeListener registers a callback invoked on every
// transition.
func (cb *CircuitBreaker) AddStateChangeListener(fn func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, fn)
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn if the breaker permits it, recording the outcome.
// It returns gaiaerr.ErrCoreUnreachable-wrapping rejection immediately
// when the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		cb.cfg.Metrics.RecordRejection(cb.cfg.Name)
		return gaiaerr.New("CircuitBreaker.Execute", "resilience", gaiaerr.ErrCoreUnreachable).WithID(cb.cfg.Name)
	}
	err := fn()
	cb.complete(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.rotateIfStale()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.stateChangedAt) >= cb.cfg.SleepWindow {
			cb.transition(StateHalfOpen)
			cb.halfOpenInFlight, cb.halfOpenSuccess, cb.halfOpenFailure = 0, 0, 0
		} else {
			return false
		}
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.cfg.HalfOpenRequests {
			return false
		}
		cb.halfOpenInFlight++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) complete(err error) {
	counts := cb.cfg.ErrorClassifier(err)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenInFlight--
		if counts {
			cb.halfOpenFailure++
		} else {
			cb.halfOpenSuccess++
		}
		total := cb.halfOpenSuccess + cb.halfOpenFailure
		if total >= cb.cfg.HalfOpenRequests {
			rate := float64(cb.halfOpenSuccess) / float64(total)
			if rate >= cb.cfg.SuccessThreshold {
				cb.transition(StateClosed)
				cb.win = window{resetAt: time.Now()}
			} else {
				cb.transition(StateOpen)
			}
		}
	default:
		if counts {
			cb.win.failure++
			cb.cfg.Metrics.RecordFailure(cb.cfg.Name, "error")
		} else {
			cb.win.success++
			cb.cfg.Metrics.RecordSuccess(cb.cfg.Name)
		}
		cb.evaluate()
	}
}

func (cb *CircuitBreaker) evaluate() {
	total := cb.win.success + cb.win.failure
	if total < cb.cfg.VolumeThreshold {
		return
	}
	rate := float64(cb.win.failure) / float64(total)
	if cb.state == StateClosed && rate >= cb.cfg.ErrorThreshold {
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) rotateIfStale() {
	if time.Since(cb.win.resetAt) > cb.cfg.WindowSize {
		cb.win = window{resetAt: time.Now()}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.stateChangedAt = time.Now()
	cb.cfg.Metrics.RecordStateChange(cb.cfg.Name, from, to)
	if cb.cfg.Logger != nil {
		cb.cfg.Logger.Info("circuit breaker transitioned", map[string]interface{}{
			"name": cb.cfg.Name, "from": from.String(), "to": to.String(),
		})
	}
	for _, l := range cb.listeners {
		l(cb.cfg.Name, from, to)
	}
}
