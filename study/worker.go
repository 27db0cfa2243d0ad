package study

import (
	"context"
	"sync"

	"github.com/azraeltruthsay/gaia/internal/gaialog"
	"github.com/azraeltruthsay/gaia/vectorstore"
)

// Worker is the Study service's knowledge-base facade: it owns the
// sole-writer vectorstore.Indexer for every knowledge base it is
// assigned (spec.md §4.3's "writer" role, wired here as §4.11's
// "vector index building" responsibility), plus the adapter-training
// jobs running in Study Mode.
type Worker struct {
	KnowledgeDir string
	StoreDir     string
	Embedder     vectorstore.Embedder
	Log          gaialog.Logger

	// Adapters persists completed training results if set; nil skips
	// persistence (status is still available via JobStatus in memory).
	Adapters *AdapterStore

	mu       sync.Mutex
	indexers map[string]*vectorstore.Indexer
	jobs     map[string]*Job
}

// NewWorker builds a Worker with no indexers or jobs yet; they're
// created lazily per knowledge-base / adapter name.
func NewWorker(knowledgeDir, storeDir string, embedder vectorstore.Embedder, log gaialog.Logger) *Worker {
	if log == nil {
		log = gaialog.NoOp()
	}
	return &Worker{
		KnowledgeDir: knowledgeDir,
		StoreDir:     storeDir,
		Embedder:     embedder,
		Log:          log,
		indexers:     make(map[string]*vectorstore.Indexer),
		jobs:         make(map[string]*Job),
	}
}

// indexerFor returns (creating if necessary) the sole Indexer for a
// knowledge base name; every HTTP handler for that knowledge base
// routes through this one instance so writes serialize correctly.
func (w *Worker) indexerFor(name string) *vectorstore.Indexer {
	w.mu.Lock()
	defer w.mu.Unlock()
	if idx, ok := w.indexers[name]; ok {
		return idx
	}
	idx := vectorstore.NewIndexer(name, w.KnowledgeDir, w.StoreDir, w.Embedder, w.Log)
	w.indexers[name] = idx
	return idx
}

// BuildIndex answers `POST /index/build`: rebuild name's index from
// its documents directory. forceRebuild is accepted for API
// compatibility with the HTTP body shape (spec.md §6) but this
// implementation always rebuilds wholesale — there is no incremental
// diffing to skip.
func (w *Worker) BuildIndex(ctx context.Context, name string, forceRebuild bool) error {
	return w.indexerFor(name).BuildIndexFromDocs(ctx)
}

// AddDocument answers `POST /index/add`: embed one file and append it
// to name's index.
func (w *Worker) AddDocument(ctx context.Context, name, filePath string) error {
	return w.indexerFor(name).AddDocument(ctx, filePath)
}

// Query answers `POST /index/query`.
func (w *Worker) Query(ctx context.Context, name, text string, topK int) ([]vectorstore.ScoredDoc, error) {
	return w.indexerFor(name).Query(ctx, text, topK)
}

// StartTraining answers `POST /study/start`: builds and runs a new
// Job, registering it under cfg.AdapterName so StudyStatus and the
// GPU coordinator can find it.
func (w *Worker) StartTraining(ctx context.Context, cfg TrainingConfig, trainer Trainer, counter AdapterCounter, limits AdapterLimits, coordinator *GPUCoordinator) *Job {
	job := NewJob(cfg, trainer, counter, limits, w.Log)

	w.mu.Lock()
	w.jobs[cfg.AdapterName] = job
	w.mu.Unlock()

	if coordinator != nil {
		coordinator.Attach(job)
	}

	go func() {
		result, err := job.Run(ctx)
		if err != nil {
			w.Log.Warn("study: training job ended with error", map[string]interface{}{"adapter": cfg.AdapterName, "error": err.Error()})
			return
		}
		if w.Adapters != nil {
			if err := w.Adapters.Save(result); err != nil {
				w.Log.Warn("study: failed to persist adapter result", map[string]interface{}{"adapter": cfg.AdapterName, "error": err.Error()})
			}
		}
	}()
	return job
}

// JobStatus answers `GET /study/status` for one adapter name.
func (w *Worker) JobStatus(adapterName string) (*Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	j, ok := w.jobs[adapterName]
	return j, ok
}
