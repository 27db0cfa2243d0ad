// Package vectorstore implements GAIA's vector knowledge substrate:
// one JSON index per knowledge base, a single designated writer per
// base (Indexer), and many read-only clients (Reader). Indexes are
// published atomically (write to a temp file, then os.Rename) so a
// Reader never observes a half-written file, mirroring the atomic
// replace the teacher's core/redis_registry.go relies on for its own
// state publication.
package vectorstore

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
)

// Doc is one embedded document stored in an Index.
type Doc struct {
	Filename string                 `json:"filename"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Index is the on-disk JSON shape at
// <store_root>/<knowledge_base_name>/index.json: parallel docs and
// embeddings slices, same position in each.
type Index struct {
	Docs       []Doc       `json:"docs"`
	Embeddings [][]float64 `json:"embeddings"`
}

// Empty reports whether the index has no documents.
func (i *Index) Empty() bool { return i == nil || len(i.Docs) == 0 }

// loadIndex reads and parses the index file at path. A missing file
// is not an error — callers get an empty index, per spec.md §4.3's
// "Missing index -> empty result set, not error." A corrupt file
// logs a warning (via the caller) and also degrades to empty.
func loadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Index{}, nil
	}
	if err != nil {
		return nil, gaiaerr.New("vectorstore.loadIndex", "vectorstore", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return &Index{}, gaiaerr.New("vectorstore.loadIndex", "vectorstore", gaiaerr.ErrIndexCorrupt)
	}
	return &idx, nil
}

// saveIndexAtomic writes idx to path via a temp file + rename, so
// concurrent readers see either the old or the new index, never a
// partially written one.
func saveIndexAtomic(path string, idx *Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return gaiaerr.New("vectorstore.saveIndexAtomic", "vectorstore", err)
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return gaiaerr.New("vectorstore.saveIndexAtomic", "vectorstore", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return gaiaerr.New("vectorstore.saveIndexAtomic", "vectorstore", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return gaiaerr.New("vectorstore.saveIndexAtomic", "vectorstore", err)
	}
	return nil
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors. Returns 0 if either vector has zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
