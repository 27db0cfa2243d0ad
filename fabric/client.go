package fabric

import (
	"context"
	"net/http"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/resilience"
)

// HTTPCoreClient implements CoreClient against Core's real HTTP
// surface (§6: POST /gpu/release, POST /gpu/reclaim), wrapped in a
// circuit breaker + retry the way internal/resilience is grounded to
// be used for every inter-service call.
type HTTPCoreClient struct {
	BaseURL string
	HTTP    *http.Client
	Breaker *resilience.CircuitBreaker
	Retry   *resilience.RetryConfig
}

// NewHTTPCoreClient builds an HTTPCoreClient with a default 30s
// client timeout (spec.md §5's default cross-service timeout).
func NewHTTPCoreClient(baseURL string) *HTTPCoreClient {
	return &HTTPCoreClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Breaker: resilience.New(resilience.DefaultConfig("fabric->core")),
		Retry:   resilience.DefaultRetryConfig(),
	}
}

func (c *HTTPCoreClient) post(ctx context.Context, path string) error {
	return c.Breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, c.Retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, nil)
			if err != nil {
				return err
			}
			resp, err := c.HTTP.Do(req)
			if err != nil {
				return gaiaerr.New("fabric.HTTPCoreClient", "fabric", gaiaerr.ErrCoreUnreachable)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return gaiaerr.New("fabric.HTTPCoreClient", "fabric", gaiaerr.ErrCoreUnreachable).WithID(path)
			}
			return nil
		})
	})
}

func (c *HTTPCoreClient) ReleaseGPU(ctx context.Context) error { return c.post(ctx, "/gpu/release") }
func (c *HTTPCoreClient) ReclaimGPU(ctx context.Context) error { return c.post(ctx, "/gpu/reclaim") }

// HTTPStudyClient implements StudyClient against Study's real HTTP
// surface (§6: POST /study/gpu-ready).
type HTTPStudyClient struct {
	BaseURL string
	HTTP    *http.Client
	Breaker *resilience.CircuitBreaker
	Retry   *resilience.RetryConfig
}

// NewHTTPStudyClient builds an HTTPStudyClient mirroring
// NewHTTPCoreClient's defaults.
func NewHTTPStudyClient(baseURL string) *HTTPStudyClient {
	return &HTTPStudyClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Breaker: resilience.New(resilience.DefaultConfig("fabric->study")),
		Retry:   resilience.DefaultRetryConfig(),
	}
}

func (c *HTTPStudyClient) SignalGPUReady(ctx context.Context) error {
	return c.Breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, c.Retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/study/gpu-ready", nil)
			if err != nil {
				return err
			}
			resp, err := c.HTTP.Do(req)
			if err != nil {
				return gaiaerr.New("fabric.HTTPStudyClient", "fabric", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return gaiaerr.New("fabric.HTTPStudyClient", "fabric", gaiaerr.ErrHandoffTimeout)
			}
			return nil
		})
	})
}

// ServiceInjector restarts a live service's process so its caller
// routes traffic through a candidate's endpoint instead, and reverses
// the swap. Docker/k8s restart mechanics are out of scope (spec.md
// §1); this is the narrow control-plane hook SwapRegistry calls. No
// HTTP handler in this repository invokes it.
type ServiceInjector interface {
	Inject(ctx context.Context, serviceID, candidateEndpoint string) error
	Revert(ctx context.Context, serviceID string) error
}

// SwapRegistry tracks which services currently have a candidate
// endpoint override in effect, so Revert doesn't need the caller to
// remember it.
type SwapRegistry struct {
	Injector ServiceInjector
	active   map[string]string
}

// NewSwapRegistry builds an empty SwapRegistry.
func NewSwapRegistry(injector ServiceInjector) *SwapRegistry {
	return &SwapRegistry{Injector: injector, active: make(map[string]string)}
}

// Swap routes serviceID's caller at candidateEndpoint.
func (s *SwapRegistry) Swap(ctx context.Context, serviceID, candidateEndpoint string) error {
	if err := s.Injector.Inject(ctx, serviceID, candidateEndpoint); err != nil {
		return err
	}
	s.active[serviceID] = candidateEndpoint
	return nil
}

// Revert restores serviceID's caller to its live endpoint.
func (s *SwapRegistry) Revert(ctx context.Context, serviceID string) error {
	if err := s.Injector.Revert(ctx, serviceID); err != nil {
		return err
	}
	delete(s.active, serviceID)
	return nil
}

// Active reports the candidate endpoint currently swapped in for
// serviceID, if any.
func (s *SwapRegistry) Active(serviceID string) (string, bool) {
	v, ok := s.active[serviceID]
	return v, ok
}
