// Command gaia-study runs the Study Worker service: the sole writer
// for its assigned knowledge bases' vector indexes, and the adapter
// fine-tuning state machine run in "Study Mode". Grounded on
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

	"github.com/azraeltruthsay/gaia/internal/gaiaconfig"
	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
	"github.com/azraeltruthsay/gaia/internal/gaiaver"
	"github.com/azraeltruthsay/gaia/internal/telemetry"
	"github.com/azraeltruthsay/gaia/internal/inference/openai"
	"github.com/azraeltruthsay/gaia/study"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(gaiaver.String())
		return
	}

	cfg, err := gaiaconfig.Load(gaiaconfig.WithServiceName("gaia-study"))
	if err != nil {
		log.Fatalf("gaia-study: config: %v", err)
	}
	logger := gaialog.New(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.New(context.Background(), cfg.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			logger.Warn("gaia-study: telemetry unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			logger.EnableMetrics(provider)
			defer provider.Shutdown(context.Background())
		}
	}

	client := openai.New(cfg.Inference.APIKey, cfg.Inference.BaseURL, cfg.Inference.Model)
	client.Log = logger

	worker := study.NewWorker(cfg.Vector.KnowledgeDir, cfg.Vector.StorePath, openai.VectorEmbedder{Client: client}, logger)
	worker.Adapters = study.NewAdapterStore(cfg.Study.AdapterDir)

	coord := study.NewGPUCoordinator(logger)

	var trainer study.Trainer
	if cfg.Study.TrainerURL != "" {
		trainer = study.NewHTTPTrainer(cfg.Study.TrainerURL)
	}

	limits := study.AdapterLimits{Global: cfg.Study.GlobalAdapterLimit, User: cfg.Study.UserAdapterLimit, Session: cfg.Study.SessionAdapterLimit}
	counter := study.DirAdapterCounter{Dir: cfg.Study.AdapterDir}

	srv := &server{cfg: cfg, log: logger, worker: worker, coord: coord, trainer: trainer, limits: limits, counter: counter}

	mux := http.NewServeMux()
	mux.HandleFunc("/index/build", srv.handleIndexBuild)
	mux.HandleFunc("/index/add", srv.handleIndexAdd)
	mux.HandleFunc("/index/query", srv.handleIndexQuery)
	mux.HandleFunc("/study/start", srv.handleStudyStart)
	mux.HandleFunc("/study/status", srv.handleStudyStatus)
	mux.HandleFunc("/study/gpu-ready", srv.handleGPUReady)
	mux.HandleFunc("/study/gpu-release", srv.handleGPURelease)
	mux.HandleFunc("/adapters", srv.handleAdapters)
	mux.HandleFunc("/health", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Address + ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("gaia-study: listening", map[string]interface{}{"addr": httpSrv.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gaia-study: server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

type server struct {
	cfg     *gaiaconfig.Config
	log     gaialog.Logger
	worker  *study.Worker
	coord   *study.GPUCoordinator
	trainer study.Trainer
	limits  study.AdapterLimits
	counter study.DirAdapterCounter
}

func (s *server) handleIndexBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeBaseName string `json:"knowledge_base_name"`
		ForceRebuild      bool   `json:"force_rebuild"`
	}
	if !decode(w, r, &req) {
		return
	}
	go func() {
		if err := s.worker.BuildIndex(context.Background(), req.KnowledgeBaseName, req.ForceRebuild); err != nil {
			s.log.Error("gaia-study: index build failed", map[string]interface{}{"kb": req.KnowledgeBaseName, "error": err.Error()})
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleIndexAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeBaseName string `json:"knowledge_base_name"`
		FilePath          string `json:"file_path"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.worker.AddDocument(r.Context(), req.KnowledgeBaseName, req.FilePath); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleIndexQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeBaseName string `json:"knowledge_base_name"`
		Query             string `json:"query"`
		TopK              int    `json:"top_k"`
	}
	if !decode(w, r, &req) {
		return
	}
	results, err := s.worker.Query(r.Context(), req.KnowledgeBaseName, req.Query, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, results)
}

func (s *server) handleStudyStart(w http.ResponseWriter, r *http.Request) {
	var cfg study.TrainingConfig
	if !decode(w, r, &cfg) {
		return
	}
	if s.trainer == nil {
		writeError(w, http.StatusServiceUnavailable, gaiaerr.New("handleStudyStart", "study", gaiaerr.ErrMissingConfiguration).WithID("GAIA_STUDY_TRAINER_URL"))
		return
	}
	job := s.worker.StartTraining(context.Background(), cfg, s.trainer, s.counter, s.limits, s.coord)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{"adapter_name": cfg.AdapterName, "state": job.State()})
}

func (s *server) handleStudyStatus(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("adapter_name")
	job, ok := s.worker.JobStatus(name)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"state": job.State(), "progress": job.Progress()})
}

func (s *server) handleGPUReady(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.HandleGPUReady(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleGPURelease(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.HandleGPURelease(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	list, err := s.worker.Adapters.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, list)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
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
