// Package index is the single seam to the vector collection.
//
// The collection computes embeddings server-side from record text, so this
// package never handles vectors: records go up as {id, text} pairs and come
// back as scored hits. Implementations: Pinecone (production, REST) and
// Memory (tests, local runs).
package index

import (
	"context"
	"errors"
)

var (
	// ErrProvision indicates the remote collection could not be created or described.
	ErrProvision = errors.New("failed to provision index")

	// ErrUpsert indicates a record upsert failed remotely.
	ErrUpsert = errors.New("failed to upsert records")

	// ErrSearch indicates a search failed remotely. Search never returns
	// partial results silently; it is all hits or this error.
	ErrSearch = errors.New("failed to search index")

	// ErrDelete indicates a bulk delete failed remotely. Missing ids are
	// not an error.
	ErrDelete = errors.New("failed to delete records")
)

// Record is the indexed unit sent to the collection. ID is a content hash of
// Text, so identical chunk text always maps to the same record (implicit
// content-addressed dedup); the embedding is computed by the index itself.
type Record struct {
	ID   string
	Text string
}

// Hit is one search result. Hits are ordered closest-first.
type Hit struct {
	ID    string
	Text  string
	Score float64
}

// Index abstracts collection provisioning, upsert, search and delete.
type Index interface {
	// EnsureIndex idempotently creates the named collection with the given
	// server-side embedding model and blocks until it is ready for upserts.
	// Concurrent first-time callers may race create; an "already exists"
	// response is a non-error outcome.
	EnsureIndex(ctx context.Context, name, embedModel string) error

	// Upsert writes records into the namespace. A record id that already
	// exists is overwritten, not appended.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Search returns up to topK hits for the query text, closest first.
	Search(ctx context.Context, namespace, query string, topK int) ([]Hit, error)

	// DeleteMany removes records by id, best-effort; unknown ids are ignored.
	DeleteMany(ctx context.Context, namespace string, ids []string) error
}
