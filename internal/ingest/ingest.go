// Package ingest turns uploaded documents into searchable vector records.
//
// The pipeline is load, split, embed (server side, at upsert), index, then
// record the result in the file registry. Record ids are content hashes, so
// ingesting the same text twice writes the same vector records.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/koopa0/chatbot-rag/internal/chunker"
	"github.com/koopa0/chatbot-rag/internal/index"
	"github.com/koopa0/chatbot-rag/internal/loader"
	"github.com/koopa0/chatbot-rag/internal/log"
	"github.com/koopa0/chatbot-rag/internal/registry"
)

// upsertBatchSize caps records per upsert request; the integrated-embedding
// endpoint rejects larger batches.
const upsertBatchSize = 96

// upsertConcurrency bounds parallel upsert requests per ingestion.
const upsertConcurrency = 4

// Indexer is the slice of the vector index the pipeline needs.
type Indexer interface {
	EnsureIndex(ctx context.Context, name, embedModel string) error
	Upsert(ctx context.Context, namespace string, records []index.Record) error
}

// Inserter persists the registry row for an ingested file.
type Inserter interface {
	Insert(ctx context.Context, fileName, fileKey string, recordIDs []string) (registry.File, error)
}

// Loader extracts text documents from raw file bytes.
type Loader interface {
	Load(ctx context.Context, data []byte, name, mimeType string) ([]loader.Document, error)
}

// Config carries the pipeline knobs.
type Config struct {
	IndexName    string
	EmbedModel   string
	Namespace    string
	ChunkSize    int
	ChunkOverlap int
}

// Pipeline ingests files into the vector index and the file registry.
type Pipeline struct {
	loader Loader
	index  Indexer
	files  Inserter
	cfg    Config
	logger log.Logger

	// ensureMu guards ensured. A failed EnsureIndex is retried on the next
	// ingestion, which sync.Once would not allow.
	ensureMu sync.Mutex
	ensured  bool
}

// New creates a Pipeline.
func New(l Loader, idx Indexer, files Inserter, cfg Config, logger log.Logger) *Pipeline {
	return &Pipeline{loader: l, index: idx, files: files, cfg: cfg, logger: logger}
}

// Ingest runs the full pipeline for one uploaded file and returns the
// registry row it created. Unsupported formats fail before any side effects.
//
// A file whose text yields no chunks still gets a registry row, with an
// empty record id list.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, fileName, mimeType string) (registry.File, error) {
	if !loader.Supported(fileName, mimeType) {
		return registry.File{}, fmt.Errorf("%w: %s", loader.ErrUnsupportedFormat, fileName)
	}

	docs, err := p.loader.Load(ctx, data, fileName, mimeType)
	if err != nil {
		return registry.File{}, fmt.Errorf("loading %s: %w", fileName, err)
	}

	records := p.collectRecords(docs)

	if len(records) > 0 {
		if err := p.ensureIndex(ctx); err != nil {
			return registry.File{}, err
		}
		if err := p.upsertAll(ctx, records); err != nil {
			return registry.File{}, fmt.Errorf("indexing %s: %w", fileName, err)
		}
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	file, err := p.files.Insert(ctx, fileName, fileKey(data), ids)
	if err != nil {
		return registry.File{}, err
	}

	p.logger.Info("ingested file",
		"file_name", fileName,
		"documents", len(docs),
		"records", len(records))
	return file, nil
}

// collectRecords splits every document and assigns content-hash ids.
// Duplicate chunk text collapses to one record; the first occurrence wins,
// so the returned order follows the source text.
func (p *Pipeline) collectRecords(docs []loader.Document) []index.Record {
	seen := make(map[string]struct{})
	var records []index.Record
	for _, doc := range docs {
		chunks := chunker.Split(doc.Text,
			chunker.WithChunkSize(p.cfg.ChunkSize),
			chunker.WithOverlap(p.cfg.ChunkOverlap))
		for _, chunk := range chunks {
			id := recordID(chunk)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			records = append(records, index.Record{ID: id, Text: chunk})
		}
	}
	return records
}

// ensureIndex provisions the index once per process, retrying after failures.
func (p *Pipeline) ensureIndex(ctx context.Context) error {
	p.ensureMu.Lock()
	defer p.ensureMu.Unlock()
	if p.ensured {
		return nil
	}
	if err := p.index.EnsureIndex(ctx, p.cfg.IndexName, p.cfg.EmbedModel); err != nil {
		return err
	}
	p.ensured = true
	return nil
}

// upsertAll writes records in bounded-size batches with bounded concurrency.
func (p *Pipeline) upsertAll(ctx context.Context, records []index.Record) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertConcurrency)

	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))
		batch := records[start:end]
		g.Go(func() error {
			return p.index.Upsert(ctx, p.cfg.Namespace, batch)
		})
	}
	return g.Wait()
}

// recordID derives a stable id from the chunk text itself.
func recordID(chunk string) string {
	sum := sha256.Sum256([]byte(chunk))
	return hex.EncodeToString(sum[:])
}

// fileKey derives a stable key from the raw file content.
func fileKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
