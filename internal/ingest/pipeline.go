package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/toefl-tutor-core/server/internal/knowledge"
	"github.com/toefl-tutor-core/server/internal/llm"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

// DefaultTextColumns are the dataset columns combined into the embedded
// document when the caller does not override them.
var DefaultTextColumns = []string{
	"Example_Prompt_Text",
	"Student_Goal_Context",
	"Student_Confidence_Context",
	"English_Comfort_Level",
	"Teacher_Initial_Impression",
	"Student_Struggle_Context",
}

const defaultBatchSize = 100

// Report summarises one ingestion run.
type Report struct {
	RecordsRead     int
	RecordsEmbedded int
	RecordsSkipped  int
	Errors          int
}

// String renders the human-readable summary printed by the CLI.
func (r Report) String() string {
	return fmt.Sprintf("records_read=%d records_embedded=%d records_skipped=%d errors=%d",
		r.RecordsRead, r.RecordsEmbedded, r.RecordsSkipped, r.Errors)
}

// Pipeline reads a tabular dataset, embeds each record's text, and writes
// the resulting entries into the embedding store in batches. Runs are
// restart-safe: entry ids are deterministic per row, so re-running the same
// dataset upserts instead of duplicating.
type Pipeline struct {
	store       knowledge.Store
	embedder    llm.EmbedderClient
	textColumns []string
	idColumn    string
	batchSize   int
}

// Option customises pipeline construction.
type Option func(*Pipeline)

// WithTextColumns overrides the columns joined into the embedded document.
func WithTextColumns(columns []string) Option {
	return func(p *Pipeline) {
		if len(columns) > 0 {
			p.textColumns = columns
		}
	}
}

// WithIDColumn selects a dataset column as the stable source id. Rows with
// an empty value in that column fall back to the positional id.
func WithIDColumn(column string) Option {
	return func(p *Pipeline) { p.idColumn = column }
}

// WithBatchSize overrides how many entries are ingested per store call.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates an ingestion pipeline over the given store and embedder.
func New(store knowledge.Store, embedder llm.EmbedderClient, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		textColumns: DefaultTextColumns,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests the CSV dataset at path. It aborts only when the dataset
// cannot be opened or its header cannot be read; per-record failures are
// counted in the report and the run continues. Records whose text columns
// are all empty are skipped, not failed.
func (p *Pipeline) Run(ctx context.Context, path string) (Report, error) {
	var report Report

	f, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("open dataset %q: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows, mirror per-record skip semantics

	header, err := reader.Read()
	if err != nil {
		return report, fmt.Errorf("read dataset header %q: %w", path, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	batch := make([]knowledge.Entry, 0, p.batchSize)
	row := 0
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.RecordsRead++
				report.Errors++
				logx.Warn().Err(err).Int("row", row).Msg("Skipping malformed dataset row")
				row++
				continue
			}
			return report, fmt.Errorf("read dataset %q: %w", path, err)
		}
		report.RecordsRead++

		text := p.documentText(columns, record)
		if text == "" {
			report.RecordsSkipped++
			logx.Debug().Int("row", row).Msg("Skipping record with no embeddable text")
			row++
			continue
		}

		vector, err := p.embedder.Embed(ctx, text)
		if err != nil {
			report.Errors++
			logx.Warn().Err(err).Int("row", row).Msg("Embedding failed for record")
			row++
			continue
		}

		batch = append(batch, knowledge.Entry{
			SourceID: p.sourceID(columns, record, row),
			Text:     text,
			Vector:   vector,
			Metadata: rowMetadata(header, record),
		})
		report.RecordsEmbedded++
		row++

		if len(batch) >= p.batchSize {
			if err := p.store.Ingest(ctx, batch); err != nil {
				return report, fmt.Errorf("ingest batch: %w", err)
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := p.store.Ingest(ctx, batch); err != nil {
			return report, fmt.Errorf("ingest batch: %w", err)
		}
	}

	logx.Info().
		Int("records_read", report.RecordsRead).
		Int("records_embedded", report.RecordsEmbedded).
		Int("records_skipped", report.RecordsSkipped).
		Int("errors", report.Errors).
		Msg("Ingestion complete")
	return report, nil
}

// documentText joins the configured text columns with newlines, skipping
// empty values, matching how the source dataset was embedded originally.
func (p *Pipeline) documentText(columns map[string]int, record []string) string {
	parts := make([]string, 0, len(p.textColumns))
	for _, col := range p.textColumns {
		idx, ok := columns[col]
		if !ok || idx >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[idx]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

// sourceID prefers the configured id column and falls back to the row
// position, which is stable for an unchanged dataset.
func (p *Pipeline) sourceID(columns map[string]int, record []string, row int) string {
	if p.idColumn != "" {
		if idx, ok := columns[p.idColumn]; ok && idx < len(record) {
			if v := strings.TrimSpace(record[idx]); v != "" {
				return v
			}
		}
	}
	return fmt.Sprintf("row_%d", row)
}

func rowMetadata(header, record []string) map[string]string {
	meta := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(record) {
			meta[strings.TrimSpace(name)] = record[i]
		}
	}
	return meta
}
