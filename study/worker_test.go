package study

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

func TestWorkerBuildIndexAndQuery(t *testing.T) {
	knowledgeDir := t.TempDir()
	storeDir := t.TempDir()
	kbDir := filepath.Join(knowledgeDir, "lore")
	require.NoError(t, os.MkdirAll(kbDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(kbDir, "a.md"), []byte("lore document"), 0o644))

	w := NewWorker(knowledgeDir, storeDir, fakeEmbedder{}, nil)
	require.NoError(t, w.BuildIndex(context.Background(), "lore", false))

	results, err := w.Query(context.Background(), "lore", "lore document", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "a.md", results[0].Filename)
}

func TestWorkerReusesSameIndexerForRepeatedCalls(t *testing.T) {
	w := NewWorker(t.TempDir(), t.TempDir(), fakeEmbedder{}, nil)
	first := w.indexerFor("kb")
	second := w.indexerFor("kb")
	assert.Same(t, first, second)
}

func TestWorkerStartTrainingRegistersJob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("fact one."), 0o644))

	w := NewWorker(t.TempDir(), t.TempDir(), fakeEmbedder{}, nil)
	job := w.StartTraining(context.Background(), TrainingConfig{AdapterName: "a1", SourceDir: dir, MaxSteps: 1}, &fakeTrainer{}, nil, DefaultAdapterLimits(), nil)
	require.NotNil(t, job)

	got, ok := w.JobStatus("a1")
	require.True(t, ok)
	assert.Same(t, job, got)
}
