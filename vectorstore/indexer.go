package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// knownTextExtensions are the file types Indexer.BuildIndexFromDocs
// scans for, matching the original's documents-directory walk.
var knownTextExtensions = map[string]bool{
	".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true,
}

// Indexer is the sole writer for one knowledge base's index. Every
// write (build, add-document, refresh) serializes through its mutex
// and publishes atomically, so concurrent Readers never see a torn
// file. Study Worker (§4.11) is the only GAIA component that
// constructs an Indexer in production; everything else uses Reader.
type Indexer struct {
	KnowledgeBaseName string
	DocDir            string
	IndexPath         string
	Embedder          Embedder
	Log               gaialog.Logger

	mu    sync.Mutex
	index *Index
}

// NewIndexer builds an Indexer rooted at knowledgeDir/<name> for
// documents and storeDir/<name>/index.json for the index file.
func NewIndexer(name, knowledgeDir, storeDir string, embedder Embedder, log gaialog.Logger) *Indexer {
	if log == nil {
		log = gaialog.NoOp()
	}
	return &Indexer{
		KnowledgeBaseName: name,
		DocDir:            filepath.Join(knowledgeDir, name),
		IndexPath:         filepath.Join(storeDir, name, "index.json"),
		Embedder:          embedder,
		Log:               log,
	}
}

// BuildIndexFromDocs scans DocDir for known text-extension files,
// embeds each, and replaces the on-disk index wholesale.
func (w *Indexer) BuildIndexFromDocs(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.DocDir)
	if os.IsNotExist(err) {
		w.index = &Index{}
		return saveIndexAtomic(w.IndexPath, w.index)
	}
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if knownTextExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	idx := &Index{}
	for _, name := range names {
		path := filepath.Join(w.DocDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			w.Log.Warn("vectorstore: skipping unreadable document", map[string]interface{}{"path": path, "error": err.Error()})
			continue
		}
		text := string(data)
		vec, err := w.Embedder.Embed(ctx, text)
		if err != nil {
			w.Log.Warn("vectorstore: embedding failed, skipping document", map[string]interface{}{"path": path, "error": err.Error()})
			continue
		}
		idx.Docs = append(idx.Docs, Doc{Filename: name, Text: text})
		idx.Embeddings = append(idx.Embeddings, vec)
	}

	w.index = idx
	return saveIndexAtomic(w.IndexPath, idx)
}

// AddDocument embeds a single file and appends it to the existing
// index, loading the current index from disk first if not cached.
func (w *Indexer) AddDocument(ctx context.Context, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.index == nil {
		idx, err := loadIndex(w.IndexPath)
		if err != nil {
			return err
		}
		w.index = idx
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)
	vec, err := w.Embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	w.index.Docs = append(w.index.Docs, Doc{Filename: filepath.Base(path), Text: text})
	w.index.Embeddings = append(w.index.Embeddings, vec)
	return saveIndexAtomic(w.IndexPath, w.index)
}

// RefreshIndex reloads the on-disk index into memory, discarding any
// stale cached copy (used after an external process touches the file).
func (w *Indexer) RefreshIndex() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, err := loadIndex(w.IndexPath)
	if err != nil {
		return err
	}
	w.index = idx
	return nil
}

// Query performs the same cosine-similarity search a Reader would,
// useful for the Study service's own `/index/query` handler without
// needing a separate Reader instance against the index it just wrote.
func (w *Indexer) Query(ctx context.Context, text string, topK int) ([]ScoredDoc, error) {
	w.mu.Lock()
	idx := w.index
	w.mu.Unlock()
	if idx == nil {
		var err error
		idx, err = loadIndex(w.IndexPath)
		if err != nil {
			return nil, err
		}
	}
	if w.Embedder == nil {
		return nil, errModelUnavailable()
	}
	vec, err := w.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return searchIndex(idx, vec, topK), nil
}
