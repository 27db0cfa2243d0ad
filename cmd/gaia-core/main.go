// Command gaia-core runs the Cognition Orchestrator service: the
// nine-stage per-turn pipeline (probe, intent, persona, RAG, tool
// routing, prompt assembly, generation, observation, finalize) behind
// `POST /process_packet`, plus the Heartbeat Scheduler running in the
// background and the GPU release/reclaim endpoints Fabric drives
// during a handoff. Grounded on core/cmd/example/main.go's
// build-then-serve shape.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/azraeltruthsay/gaia/blueprint"
	"github.com/azraeltruthsay/gaia/heartbeat"
	"github.com/azraeltruthsay/gaia/intent"
	"github.com/azraeltruthsay/gaia/internal/gaiaconfig"
	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
	"github.com/azraeltruthsay/gaia/internal/gaiaver"
	"github.com/azraeltruthsay/gaia/internal/telemetry"
	"github.com/azraeltruthsay/gaia/internal/inference/openai"
	"github.com/azraeltruthsay/gaia/observer"
	"github.com/azraeltruthsay/gaia/orchestrator"
	"github.com/azraeltruthsay/gaia/packet"
	"github.com/azraeltruthsay/gaia/probe"
	"github.com/azraeltruthsay/gaia/promptbuilder"
	"github.com/azraeltruthsay/gaia/vectorstore"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(gaiaver.String())
		return
	}

	cfg, err := gaiaconfig.Load(gaiaconfig.WithServiceName("gaia-core"))
	if err != nil {
		log.Fatalf("gaia-core: config: %v", err)
	}

	logger := gaialog.New(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.New(context.Background(), cfg.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			logger.Warn("gaia-core: telemetry unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			logger.EnableMetrics(provider)
			defer provider.Shutdown(context.Background())
		}
	}

	client := openai.New(cfg.Inference.APIKey, cfg.Inference.BaseURL, cfg.Inference.Model)
	client.Log = logger
	client.LiteModel = cfg.Inference.LiteModel
	client.Temperature = cfg.Inference.Temperature
	client.MaxTokens = cfg.Inference.MaxTokens

	readers := vectorstore.NewReaderFactory(cfg.Vector.StorePath, openai.VectorEmbedder{Client: client}, logger)
	collections := discoverCollections(cfg.Vector.StorePath, readers, logger)

	bp := blueprint.NewRegistry(cfg.Blueprint.Dir, logger)
	if live, err := bp.LoadAllLive(); err != nil {
		logger.Warn("gaia-core: blueprint registry unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		logger.Info("gaia-core: loaded live blueprints", map[string]interface{}{"count": len(live)})
	}

	prober := probe.NewProber(collections, logger)
	classifier := intent.NewClassifier(openai.IntentBackend{Client: client}, openai.IntentBackend{Client: client})
	builder := promptbuilder.New(nil, nil)

	obsCfg := observer.DefaultConfig()
	obsCfg.Mode = observer.Mode(cfg.Observer.Mode)
	obsCfg.MinInterval = cfg.Observer.MinInterval
	obsCfg.GraceTokens = cfg.Observer.GraceTokens
	obsCfg.KeywordRatioThresh = cfg.Observer.KeywordRatioThresh
	obsCfg.UseLLM = cfg.Inference.APIKey != ""

	orch := orchestrator.New()
	orch.Probe = prober
	orch.Intent = classifier
	orch.Prompt = builder
	orch.Inference = client
	orch.NewObserver = func() *observer.Observer {
		return observer.New(obsCfg, openai.ObserverBackend{Client: client}, nil)
	}

	wake := orchestrator.NewSleepWakeManager()

	sched := wireHeartbeat(cfg, logger, client, orch, wake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	srv := &server{cfg: cfg, log: logger, orch: orch, wake: wake, bp: bp}
	mux := http.NewServeMux()
	mux.HandleFunc("/process_packet", srv.handleProcessPacket)
	mux.HandleFunc("/gpu/release", srv.handleGPURelease)
	mux.HandleFunc("/gpu/reclaim", srv.handleGPUReclaim)
	mux.HandleFunc("/health", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Address + ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("gaia-core: listening", map[string]interface{}{"addr": httpSrv.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gaia-core: server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// discoverCollections builds one probe.Reader per knowledge base
// subdirectory found under storeDir, the vector substrate's
// <store_root>/<knowledge_base_name>/ convention (spec.md §4.3).
func discoverCollections(storeDir string, readers *vectorstore.ReaderFactory, log gaialog.Logger) map[string]probe.Reader {
	out := make(map[string]probe.Reader)
	entries, err := os.ReadDir(storeDir)
	if err != nil {
		log.Warn("gaia-core: no knowledge bases found", map[string]interface{}{"dir": storeDir, "error": err.Error()})
		return out
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := filepath.Base(e.Name())
		out[name] = orchestrator.NewProbeReader(readers.For(name))
	}
	return out
}

// wireHeartbeat assembles the Heartbeat Scheduler and its temporal
// collaborators from config, per spec.md §4.9 / SPEC_FULL.md §7.
func wireHeartbeat(cfg *gaiaconfig.Config, log gaialog.Logger, client *openai.Client, orch *orchestrator.Orchestrator, wake *orchestrator.SleepWakeManager) *heartbeat.Scheduler {
	sched := heartbeat.NewFromConfig(cfg.Heartbeat)
	sched.Log = log
	sched.Agent = orch
	sched.Wake = wake
	sched.TriageLLM = openai.HeartbeatBackend{Client: client}

	store, err := heartbeat.NewFileStore(cfg.Heartbeat.SeedsDir, log)
	if err != nil {
		log.Warn("gaia-core: heartbeat seed store unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		sched.Seeds = store
	}

	if cfg.Heartbeat.LiteJournalEnabled {
		sched.Journal = heartbeat.NewJournal(openai.HeartbeatBackend{Client: client}, 200)
	}

	if cfg.Heartbeat.TemporalStateEnabled {
		temporal, err := heartbeat.NewTemporalStateManager(cfg.Heartbeat.TemporalStateDir, sched.Journal)
		if err != nil {
			log.Warn("gaia-core: temporal state manager unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			sched.Temporal = temporal
			if cfg.Heartbeat.TemporalInterviewEnabled {
				sched.Interviewer = &heartbeat.Interviewer{
					Prime:    openai.HeartbeatBackend{Client: client},
					PastSelf: openai.HeartbeatBackend{Client: client},
					Temporal: temporal,
					Journal:  sched.Journal,
				}
			}
		}
	}

	return sched
}

type server struct {
	cfg  *gaiaconfig.Config
	log  gaialog.Logger
	orch *orchestrator.Orchestrator
	wake *orchestrator.SleepWakeManager
	bp   *blueprint.Registry
}

// handleProcessPacket answers `POST /process_packet`: body and
// response are both full CognitionPacket dicts (spec.md §6). Streaming
// is not used on this endpoint; the orchestrator runs to completion
// and the finalized packet is returned.
func (s *server) handleProcessPacket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, gaiaerr.New("handleProcessPacket", "http", err))
		return
	}

	var req struct {
		SessionID string        `json:"session_id"`
		Origin    packet.Origin `json:"origin"`
		Prompt    string        `json:"prompt"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, gaiaerr.New("handleProcessPacket", "http", err))
			return
		}
	}
	if req.Origin == "" {
		req.Origin = packet.OriginUser
	}

	result, err := s.orch.Run(r.Context(), req.SessionID, req.Origin, req.Prompt, func(orchestrator.StreamEvent) error { return nil })
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data, err := result.ToJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleGPURelease answers `POST /gpu/release`: in this repo's scope
// there are no model weights this process owns to unload (the
// inference engine is an external collaborator, spec.md §1); this
// acknowledges the request so Fabric's handoff poll proceeds.
func (s *server) handleGPURelease(w http.ResponseWriter, r *http.Request) {
	s.log.Info("gaia-core: gpu release requested", nil)
	s.wake.SetState(orchestrator.StateDistracted)
	w.WriteHeader(http.StatusOK)
}

// handleGPUReclaim answers `POST /gpu/reclaim`.
func (s *server) handleGPUReclaim(w http.ResponseWriter, r *http.Request) {
	s.log.Info("gaia-core: gpu reclaim requested", nil)
	s.wake.SetState(orchestrator.StateActive)
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"state":  s.wake.State(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
