package orchestrator

import (
	"context"

	"github.com/azraeltruthsay/gaia/probe"
	"github.com/azraeltruthsay/gaia/promptbuilder"
	"github.com/azraeltruthsay/gaia/vectorstore"
)

// vectorstoreProbeReader adapts a *vectorstore.Reader onto
// probe.Reader by converting vectorstore.QueryResult into
// probe.QueryResult. The two types are structurally identical by
// design but are declared independently in their owning packages, so
// this is the one place that knows about both.
type vectorstoreProbeReader struct {
	reader *vectorstore.Reader
}

// NewProbeReader wraps r so it satisfies probe.Reader.
func NewProbeReader(r *vectorstore.Reader) probe.Reader {
	return vectorstoreProbeReader{reader: r}
}

func (a vectorstoreProbeReader) Query(ctx context.Context, phrase string, topK int) ([]probe.QueryResult, error) {
	results, err := a.reader.Query(ctx, phrase, topK)
	if err != nil {
		return nil, err
	}
	out := make([]probe.QueryResult, len(results))
	for i, r := range results {
		out[i] = probe.QueryResult{
			Text: r.Text, Score: r.Score, Filename: r.Filename,
			ChunkIdx: r.ChunkIdx, ConfidenceTier: r.ConfidenceTier,
		}
	}
	return out, nil
}

// vectorstoreDocumentReader adapts a *vectorstore.Reader onto
// DocumentReader for the RAG stage.
type vectorstoreDocumentReader struct {
	reader *vectorstore.Reader
}

// NewDocumentReader wraps r so it satisfies DocumentReader.
func NewDocumentReader(r *vectorstore.Reader) DocumentReader {
	return vectorstoreDocumentReader{reader: r}
}

func (a vectorstoreDocumentReader) Query(ctx context.Context, text string, topK int) ([]promptbuilder.RetrievedDocument, error) {
	results, err := a.reader.Query(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	out := make([]promptbuilder.RetrievedDocument, len(results))
	for i, r := range results {
		out[i] = promptbuilder.RetrievedDocument{Source: r.Filename, Excerpt: r.Text}
	}
	return out, nil
}
