// Command gaia-fabric runs the Orchestrator Fabric service: GPU
// handoff coordination between Core and Study, the WebSocket
// notification stream, and a container status board over the declared
// services (the live gaia-core and gaia-study; no candidate service is
// declared). No ContainerInspector is wired, so every service reports
// state unknown and is not health-checked. Grounded on
// core/cmd/example/main.go's build-then-serve shape.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/azraeltruthsay/gaia/fabric"
	"github.com/azraeltruthsay/gaia/internal/gaiaconfig"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
	"github.com/azraeltruthsay/gaia/internal/gaiaver"
	"github.com/azraeltruthsay/gaia/internal/telemetry"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(gaiaver.String())
		return
	}

	cfg, err := gaiaconfig.Load(gaiaconfig.WithServiceName("gaia-fabric"))
	if err != nil {
		log.Fatalf("gaia-fabric: config: %v", err)
	}
	logger := gaialog.New(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.New(context.Background(), cfg.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			logger.Warn("gaia-fabric: telemetry unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			logger.EnableMetrics(provider)
			defer provider.Shutdown(context.Background())
		}
	}

	broadcaster := fabric.NewBroadcaster(cfg.Fabric.NotificationHistoryLimit, logger)

	gpuCfg := fabric.DefaultGPUManagerConfig()
	gpuCfg.PollInterval = cfg.Fabric.GPUCleanupPollInterval
	gpuCfg.CleanThreshold = cfg.Fabric.GPUCleanupThresholdMB
	gpuCfg.HandoffTimeout = cfg.Fabric.GPUCleanupTimeout

	manager := fabric.NewGPUManager(
		gpuCfg,
		fabric.Unavailable{},
		fabric.NewHTTPCoreClient(cfg.Fabric.CoreURL),
		fabric.NewHTTPStudyClient(cfg.Fabric.StudyURL),
		broadcaster,
		logger,
	)

	board := fabric.NewStatusBoard([]fabric.DeclaredService{
		{ServiceID: "gaia-core", HealthURL: cfg.Fabric.CoreURL + "/health"},
		{ServiceID: "gaia-study", HealthURL: cfg.Fabric.StudyURL + "/health"},
	}, nil, &http.Client{Timeout: cfg.Fabric.HTTPTimeout})

	srv := &server{cfg: cfg, log: logger, manager: manager, broadcaster: broadcaster, board: board}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.pollContainers(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/gpu/handoff", srv.handleGPUHandoff)
	mux.HandleFunc("/containers/status", srv.handleContainersStatus)
	mux.Handle("/notifications", broadcaster)
	mux.HandleFunc("/health", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Address + ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("gaia-fabric: listening", map[string]interface{}{"addr": httpSrv.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gaia-fabric: server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

type server struct {
	cfg         *gaiaconfig.Config
	log         gaialog.Logger
	manager     *fabric.GPUManager
	broadcaster *fabric.Broadcaster
	board       *fabric.StatusBoard
}

// pollContainers refreshes the StatusBoard on a fixed interval until
// ctx is canceled, so `/containers/status` always answers from cache
// instead of blocking a request on live health checks.
func (s *server) pollContainers(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	s.board.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.board.Refresh(ctx)
		}
	}
}

// handleGPUHandoff answers `POST /gpu/handoff`: initiates the
// release -> poll-clean -> acquire sequence (spec.md §8 scenario 7).
func (s *server) handleGPUHandoff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.manager.RequestHandoff(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleContainersStatus answers `GET /containers/status`: the status
// board's snapshot of the declared services from the last poll.
func (s *server) handleContainersStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.board.Snapshot())
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"status": "ok", "gpu_state": s.manager.State()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
