package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// QueryResult is one scored hit returned by Query. It mirrors
// probe.QueryResult field-for-field; callers that feed a Reader into
// the probe package's Reader interface adapt between the two (see
// orchestrator's vectorstoreProbeReader) rather than this package
// importing probe's type directly, which would invert the natural
// storage-layer/consumer dependency.
type QueryResult struct {
	Text           string
	Score          float64
	Filename       string
	ChunkIdx       int
	ConfidenceTier string
}

// ScoredDoc is one ranked search result.
type ScoredDoc struct {
	Filename string
	Text     string
	Score    float64
	Idx      int
	Metadata map[string]interface{}
}

// Reader is a read-only client over one knowledge base's index. Many
// Readers may exist concurrently; none of them ever write. It
// lazy-loads the index on first query (spec.md §4.3); the Embedder is
// supplied at construction.
type Reader struct {
	KnowledgeBaseName string
	IndexPath         string
	Embedder          Embedder
	Log               gaialog.Logger

	mu    sync.Mutex
	index *Index
}

// NewReader builds a Reader for name pointed at storeDir/<name>/index.json.
func NewReader(name, storeDir string, embedder Embedder, log gaialog.Logger) *Reader {
	if log == nil {
		log = gaialog.NoOp()
	}
	return &Reader{
		KnowledgeBaseName: name,
		IndexPath:         storeDir + "/" + name + "/index.json",
		Embedder:          embedder,
		Log:               log,
	}
}

func errModelUnavailable() error {
	return gaiaerr.New("vectorstore.Query", "vectorstore", gaiaerr.ErrEmbeddingFailed)
}

// Query embeds text and returns the top-k most similar documents.
// A missing index returns an empty slice, never an error. A missing
// embedder on a non-trivial query fails with "model unavailable".
func (r *Reader) Query(ctx context.Context, text string, topK int) ([]QueryResult, error) {
	r.mu.Lock()
	if r.index == nil {
		idx, err := loadIndex(r.IndexPath)
		if err != nil {
			r.Log.Warn("vectorstore: corrupt index, using empty", map[string]interface{}{"kb": r.KnowledgeBaseName})
			idx = &Index{}
		}
		r.index = idx
	}
	idx := r.index
	r.mu.Unlock()

	if idx.Empty() {
		return nil, nil
	}
	if r.Embedder == nil {
		return nil, errModelUnavailable()
	}
	vec, err := r.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, gaiaerr.New("vectorstore.Query", "vectorstore", err)
	}

	scored := searchIndex(idx, vec, topK)
	out := make([]QueryResult, len(scored))
	for i, s := range scored {
		tier, _ := s.Metadata["confidence_tier"].(string)
		out[i] = QueryResult{Text: s.Text, Score: s.Score, Filename: s.Filename, ChunkIdx: s.Idx, ConfidenceTier: tier}
	}
	return out, nil
}

// Refresh discards the cached index so the next Query re-reads from
// disk, used when a caller knows the Indexer just republished.
func (r *Reader) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = nil
}

// searchIndex ranks every doc in idx by cosine similarity to vec and
// returns the top-k, descending.
func searchIndex(idx *Index, vec []float64, topK int) []ScoredDoc {
	scored := make([]ScoredDoc, 0, len(idx.Docs))
	for i, doc := range idx.Docs {
		if i >= len(idx.Embeddings) {
			break
		}
		score := CosineSimilarity(vec, idx.Embeddings[i])
		scored = append(scored, ScoredDoc{Filename: doc.Filename, Text: doc.Text, Score: score, Idx: i, Metadata: doc.Metadata})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// ReaderFactory produces one Reader per knowledge-base name, each
// pointed at the conventional <store_root>/<name>/index.json path,
// per spec.md §4.3's "factory produces one reader per knowledge-base
// name".
type ReaderFactory struct {
	StoreDir string
	Embedder Embedder
	Log      gaialog.Logger

	mu      sync.Mutex
	readers map[string]*Reader
}

// NewReaderFactory builds a factory rooted at storeDir.
func NewReaderFactory(storeDir string, embedder Embedder, log gaialog.Logger) *ReaderFactory {
	return &ReaderFactory{StoreDir: storeDir, Embedder: embedder, Log: log, readers: make(map[string]*Reader)}
}

// For returns the (cached) Reader for a knowledge-base name.
func (f *ReaderFactory) For(name string) *Reader {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.readers[name]; ok {
		return r
	}
	r := NewReader(name, f.StoreDir, f.Embedder, f.Log)
	f.readers[name] = r
	return r
}
