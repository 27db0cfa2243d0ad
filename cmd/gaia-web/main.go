// Command gaia-web runs the Web service: the thin HTTP proxy sitting
// between a chat UI and the Cognition Orchestrator. It turns a bare
// user input into a CognitionPacket request to Core, routes the
// finished packet's response to its declared destination, and tracks
// chat-UI presence and a simple inbound queue depth. Grounded on
// fabric/client.go's resilience-wrapped HTTP client pattern, applied
// here to the Web->Core leg instead of Fabric's GPU leg.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaconfig"
	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
	"github.com/azraeltruthsay/gaia/internal/gaiaver"
	"github.com/azraeltruthsay/gaia/internal/telemetry"
	"github.com/azraeltruthsay/gaia/internal/resilience"
	"github.com/azraeltruthsay/gaia/packet"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(gaiaver.String())
		return
	}

	cfg, err := gaiaconfig.Load(gaiaconfig.WithServiceName("gaia-web"))
	if err != nil {
		log.Fatalf("gaia-web: config: %v", err)
	}
	logger := gaialog.New(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.New(context.Background(), cfg.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			logger.Warn("gaia-web: telemetry unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			logger.EnableMetrics(provider)
			defer provider.Shutdown(context.Background())
		}
	}

	srv := &server{
		cfg:   cfg,
		log:   logger,
		core:  newCoreClient(cfg.Fabric.CoreURL, cfg.Fabric.HTTPTimeout),
		start: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/process_user_input", srv.handleProcessUserInput)
	mux.HandleFunc("/output_router", srv.handleOutputRouter)
	mux.HandleFunc("/presence", srv.handlePresence)
	mux.HandleFunc("/queue/status", srv.handleQueueStatus)
	mux.HandleFunc("/health", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Address + ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("gaia-web: listening", map[string]interface{}{"addr": httpSrv.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gaia-web: server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// coreClient proxies to Core's `POST /process_packet`, wrapped in a
// circuit breaker + retry the way every inter-service call in this
// system is (spec.md §5).
type coreClient struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
}

func newCoreClient(baseURL string, timeout time.Duration) *coreClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &coreClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.New(resilience.DefaultConfig("web->core")),
		retry:   resilience.DefaultRetryConfig(),
	}
}

func (c *coreClient) processPacket(ctx context.Context, sessionID string, origin packet.Origin, prompt string) (*packet.CognitionPacket, error) {
	var result *packet.CognitionPacket
	err := c.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, c.retry, func() error {
			body, err := json.Marshal(struct {
				SessionID string        `json:"session_id"`
				Origin    packet.Origin `json:"origin"`
				Prompt    string        `json:"prompt"`
			}{sessionID, origin, prompt})
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process_packet", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := c.http.Do(req)
			if err != nil {
				return gaiaerr.New("coreClient.processPacket", "web", gaiaerr.ErrCoreUnreachable)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return gaiaerr.New("coreClient.processPacket", "web", gaiaerr.ErrCoreUnreachable).WithID(resp.Status)
			}
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			p, err := packet.FromJSON(data)
			if err != nil {
				return err
			}
			result = p
			return nil
		})
	})
	return result, err
}

// presenceState is what `GET /queue/status` reports back for the chat
// UI's last-reported activity.
type presenceState struct {
	Activity string    `json:"activity"`
	Status   string    `json:"status"`
	Updated  time.Time `json:"updated_at"`
}

// presence is the mutex-guarded holder `POST /presence` writes into.
type presence struct {
	mu    sync.Mutex
	state presenceState
}

func (p *presence) set(activity, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = presenceState{Activity: activity, Status: status, Updated: time.Now()}
}

func (p *presence) snapshot() presenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

type server struct {
	cfg   *gaiaconfig.Config
	log   gaialog.Logger
	core  *coreClient
	start time.Time

	queueDepth int64
	presence   presence
}

// handleProcessUserInput answers `POST /process_user_input`: body
// `{user_input}`, proxies to Core, returns `{response, packet_id}`
// (spec.md §6).
func (s *server) handleProcessUserInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserInput string `json:"user_input"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	atomic.AddInt64(&s.queueDepth, 1)
	defer atomic.AddInt64(&s.queueDepth, -1)

	p, err := s.core.processPacket(r.Context(), req.SessionID, packet.OriginUser, req.UserInput)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"response":  p.Response.Candidate,
		"packet_id": p.Header.PacketID,
	})
}

// handleOutputRouter answers `POST /output_router`: body is a
// completed packet dict; routes its response to the destination named
// by header.output_routing.primary. Actual per-destination delivery
// (Discord, audio, ...) is an external collaborator; this logs the
// routing decision, which is the part owned by this service.
func (s *server) handleOutputRouter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := packet.FromJSON(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	dest := p.Header.OutputRouting.Primary
	if dest == "" {
		dest = packet.DestinationWeb
	}
	s.log.Info("gaia-web: routing response", map[string]interface{}{
		"packet_id":   p.Header.PacketID,
		"destination": string(dest),
	})
	w.WriteHeader(http.StatusOK)
}

// handlePresence answers `POST /presence`: body `{activity, status}`.
func (s *server) handlePresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Activity string `json:"activity"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.presence.set(req.Activity, req.Status)
	w.WriteHeader(http.StatusOK)
}

// handleQueueStatus answers `GET /queue/status`: current inbound
// message queue size plus the last reported presence state.
func (s *server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"queue_depth": atomic.LoadInt64(&s.queueDepth),
		"presence":    s.presence.snapshot(),
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "uptime": time.Since(s.start).String()})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
