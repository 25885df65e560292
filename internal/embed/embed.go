// Package embed turns text into vectors for example retrieval. The
// corpus is indexed with TaskDocument vectors and queried with
// TaskQuery vectors; some providers tune the embedding per task.
package embed

import "context"

// Task selects the embedding task type.
type Task string

const (
	TaskDocument Task = "document"
	TaskQuery    Task = "query"
)

// Embedder produces fixed-size vectors. Implementations must be safe
// for concurrent use.
type Embedder interface {
	// Name identifies the provider ("gemini", "openai", "fake").
	Name() string
	// Dimensions is the vector length this embedder produces.
	Dimensions() int
	// Embed vectorizes one text for the given task.
	Embed(ctx context.Context, text string, task Task) ([]float32, error)
}
