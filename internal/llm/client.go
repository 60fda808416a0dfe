package llm

import (
	"context"
)

// EmbedderClient turns text into a fixed-length vector. The same client must
// be used for ingestion and for queries against the resulting store, so
// similarity scores stay comparable.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
