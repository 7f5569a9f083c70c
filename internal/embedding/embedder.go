// Package embedding provides text embedding via remote providers.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations are
// deterministic for a fixed backend and model version. The declared dimension
// is fixed per configuration and must match the persisted index at open time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
