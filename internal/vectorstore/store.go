// Package vectorstore persists embedded ladder-logic examples and
// answers nearest-neighbor queries over them. Backends: in-memory,
// Postgres with pgvector, and a Chroma HTTP server.
package vectorstore

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length does not
// match the store's configured dimensionality.
var ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")

// Entry is one embedded example to index.
type Entry struct {
	ID       string
	Vector   []float32
	Document string
	Metadata map[string]string
}

// Hit is one nearest neighbor, ordered by ascending Distance.
type Hit struct {
	ID       string
	Distance float64
	Document string
	Metadata map[string]string
}

// Store indexes entries and answers k-nearest-neighbor queries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Add upserts entries by ID.
	Add(ctx context.Context, entries []Entry) error
	// Query returns up to k nearest entries to vector.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
	// Count reports the number of indexed entries.
	Count(ctx context.Context) (int, error)
}
