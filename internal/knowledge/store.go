package knowledge

import "context"

// Entry is one embedded example owned by the store. Entries are created by
// ingestion and never mutated, only replaced wholesale when the same
// SourceID is ingested again.
type Entry struct {
	SourceID string            `json:"source_id"`
	Text     string            `json:"text"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata"`
}

// Result pairs an entry with its similarity to the query text.
type Result struct {
	Entry Entry
	Score float64
}

// Store is the retrieval backend consumed by the agent graph. Implementations
// must allow concurrent Query calls once ingestion has completed; Ingest is a
// single-writer maintenance operation.
type Store interface {
	// Ingest replaces or extends the persisted index, keyed by SourceID.
	// Re-ingesting an unchanged dataset must not duplicate entries.
	Ingest(ctx context.Context, entries []Entry) error

	// Query embeds the text with the same embedding function used at
	// ingestion and returns up to topK entries ranked by descending cosine
	// similarity. Fails with errx.ErrStoreUnavailable before any ingestion
	// and errx.ErrInvalidArgument for topK <= 0.
	Query(ctx context.Context, text string, topK int) ([]Result, error)

	// Len reports the number of stored entries.
	Len() int
}
