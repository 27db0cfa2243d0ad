package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{ vectors map[string][]float64 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func TestIndexerBuildAndReaderQuery(t *testing.T) {
	dir := t.TempDir()
	knowledgeDir := filepath.Join(dir, "knowledge")
	storeDir := filepath.Join(dir, "store")
	require.NoError(t, os.MkdirAll(filepath.Join(knowledgeDir, "lore"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(knowledgeDir, "lore", "a.md"), []byte("the jade phoenix order"), 0o644))

	embedder := &stubEmbedder{vectors: map[string][]float64{
		"the jade phoenix order": {1, 0, 0},
	}}

	indexer := NewIndexer("lore", knowledgeDir, storeDir, embedder, nil)
	require.NoError(t, indexer.BuildIndexFromDocs(context.Background()))

	factory := NewReaderFactory(storeDir, embedder, nil)
	reader := factory.For("lore")
	results, err := reader.Query(context.Background(), "jade phoenix order", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.md", results[0].Filename)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
}

func TestReaderMissingIndexReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	reader := NewReader("none", dir, &stubEmbedder{}, nil)
	results, err := reader.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReaderNoEmbedderFails(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store", "lore")
	require.NoError(t, os.MkdirAll(storeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storeDir, "index.json"), []byte(`{"docs":[{"filename":"a.md","text":"hi"}],"embeddings":[[1,0]]}`), 0o644))

	reader := NewReader("lore", filepath.Join(dir, "store"), nil, nil)
	_, err := reader.Query(context.Background(), "hi", 1)
	assert.Error(t, err)
}

func TestCorruptIndexDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store", "lore")
	require.NoError(t, os.MkdirAll(storeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storeDir, "index.json"), []byte(`not json`), 0o644))

	reader := NewReader("lore", filepath.Join(dir, "store"), &stubEmbedder{}, nil)
	results, err := reader.Query(context.Background(), "hi", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{2, 0}), 0.0001)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 0.0001)
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float64{1}))
}
