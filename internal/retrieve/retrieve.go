// Package retrieve finds reference ladder-logic examples for a routine
// by embedding a routine summary and querying the vector store.
// Retrieval is best-effort: any failure degrades to an empty example
// set so generation can proceed without references.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"laddergen/internal/embed"
	"laddergen/internal/ir"
	"laddergen/internal/vectorstore"
)

// DefaultK is the number of examples fetched per routine.
const DefaultK = 3

// Example is one retrieved reference, ordered by descending Similarity.
type Example struct {
	ID          string
	Title       string
	RoutineType string
	Description string
	Content     string
	Similarity  float64
}

// Result carries retrieved examples. When retrieval could not run,
// Degraded is true, Examples is empty and Cause says what failed.
type Result struct {
	Examples []Example
	Degraded bool
	Cause    string
}

type Retriever struct {
	store    vectorstore.Store
	embedder embed.Embedder
	k        int
	log      zerolog.Logger
}

func New(store vectorstore.Store, embedder embed.Embedder, k int, log zerolog.Logger) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{store: store, embedder: embedder, k: k, log: log}
}

// QueryForRoutine renders the retrieval query for one routine: its
// type label, description, and the first three rung comments.
func QueryForRoutine(routine *ir.Routine) string {
	comments := make([]string, 0, 3)
	for i := 0; i < len(routine.Rungs) && i < 3; i++ {
		comments = append(comments, routine.Rungs[i].Comment)
	}
	return fmt.Sprintf("%s routine: %s. Rungs: %s",
		routine.Type.Label(), routine.Description, strings.Join(comments, "; "))
}

func (r *Retriever) ForRoutine(ctx context.Context, routine *ir.Routine) Result {
	return r.ForQuery(ctx, QueryForRoutine(routine))
}

func (r *Retriever) ForQuery(ctx context.Context, query string) Result {
	vec, err := r.embedder.Embed(ctx, query, embed.TaskQuery)
	if err != nil {
		r.log.Warn().Err(err).Str("query", query).Msg("retrieval degraded: embedding failed")
		return Result{Degraded: true, Cause: "embedding failed: " + err.Error()}
	}

	hits, err := r.store.Query(ctx, vec, r.k)
	if err != nil {
		r.log.Warn().Err(err).Str("query", query).Msg("retrieval degraded: vector query failed")
		return Result{Degraded: true, Cause: "vector query failed: " + err.Error()}
	}

	examples := make([]Example, 0, len(hits))
	for _, h := range hits {
		examples = append(examples, Example{
			ID:          h.ID,
			Title:       h.Metadata["title"],
			RoutineType: h.Metadata["routine_type"],
			Description: h.Metadata["description"],
			Content:     h.Document,
			Similarity:  1 / (1 + h.Distance),
		})
	}
	return Result{Examples: examples}
}
