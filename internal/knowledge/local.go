package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	errx "github.com/toefl-tutor-core/server/internal/core/error"
	"github.com/toefl-tutor-core/server/internal/llm"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

// snapshot is the on-disk layout of the local store. The format is private;
// the only externally visible contract is that it survives restart and that
// SourceID uniqueness holds across restarts.
type snapshot struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

const snapshotVersion = 1

// LocalStore is a file-backed vector index with cosine ranking. It keeps the
// whole index in memory keyed by SourceID and persists a JSON snapshot after
// every ingest. Queries take a read lock so many traversals can search
// concurrently; ingest takes the write lock.
type LocalStore struct {
	mu       sync.RWMutex
	path     string
	embedder llm.EmbedderClient
	entries  map[string]Entry
}

// Open loads the store at path, creating an empty one when no snapshot
// exists yet. Queries against an empty store fail with ErrStoreUnavailable
// until Ingest runs, which is the expected state before first ingestion.
func Open(path string, embedder llm.EmbedderClient) (*LocalStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	s := &LocalStore{
		path:     path,
		embedder: embedder,
		entries:  map[string]Entry{},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logx.Warn().Str("path", path).Msg("No embedding snapshot found; store starts empty until ingestion runs")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read embedding snapshot %q: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse embedding snapshot %q: %w", path, err)
	}
	for _, e := range snap.Entries {
		s.entries[e.SourceID] = e
	}
	logx.Info().Str("path", path).Int("entries", len(s.entries)).Msg("Loaded embedding store")
	return s, nil
}

// Ingest upserts entries by SourceID and persists the snapshot atomically.
func (s *LocalStore) Ingest(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if e.SourceID == "" {
			return fmt.Errorf("%w: entry with empty source_id", errx.ErrInvalidArgument)
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %q has no vector", errx.ErrInvalidArgument, e.SourceID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.entries[e.SourceID] = e
	}
	return s.persistLocked()
}

// Query embeds the text and returns up to topK entries by descending cosine
// similarity.
func (s *LocalStore) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", errx.ErrInvalidArgument, topK)
	}

	s.mu.RLock()
	if len(s.entries) == 0 {
		s.mu.RUnlock()
		return nil, errx.ErrStoreUnavailable
	}
	s.mu.RUnlock()

	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, Result{Entry: e, Score: cosine(queryVec, e.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Len reports the number of stored entries.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// persistLocked writes the snapshot to a temp file and renames it into
// place, so readers never observe a torn file. Caller holds the write lock.
func (s *LocalStore) persistLocked() error {
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SourceID < entries[j].SourceID
	})

	data, err := json.Marshal(snapshot{Version: snapshotVersion, Entries: entries})
	if err != nil {
		return fmt.Errorf("marshal embedding snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot %q: %w", s.path, err)
	}
	return nil
}

// cosine returns the cosine similarity of two vectors, 0 when either is a
// zero vector or the dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Store = (*LocalStore)(nil)
