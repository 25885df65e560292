package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps an embedder with an LRU keyed by task and text hash.
// Corpus indexing and query embedding repeat texts often enough that
// this saves real API calls.
type Cached struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

func NewCached(next Embedder, size int) (*Cached, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: c}, nil
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Dimensions() int { return c.next.Dimensions() }

func (c *Cached) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	key := cacheKey(task, text)
	if vec, ok := c.cache.Get(key); ok {
		return append([]float32(nil), vec...), nil
	}
	vec, err := c.next.Embed(ctx, text, task)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]float32(nil), vec...))
	return vec, nil
}

func cacheKey(task Task, text string) string {
	sum := sha256.Sum256([]byte(string(task) + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
