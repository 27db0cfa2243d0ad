package vectorstore

import "context"

// Embedder is the external embedding-model collaborator. spec.md §1
// explicitly puts embedding model internals out of scope; this is the
// narrow contract the Indexer and Reader depend on instead.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
