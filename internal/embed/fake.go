package embed

import (
	"context"
	"crypto/sha256"
	"sync"
)

// FakeEmbedder derives deterministic vectors from a text hash, so the
// same text always embeds identically. Tests that need controlled
// distances can pin exact vectors with Set.
type FakeEmbedder struct {
	dims int

	mu     sync.RWMutex
	pinned map[string][]float32
}

func NewFakeEmbedder(dims int) *FakeEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return &FakeEmbedder{dims: dims, pinned: map[string][]float32{}}
}

func (f *FakeEmbedder) Name() string { return "fake" }

func (f *FakeEmbedder) Dimensions() int { return f.dims }

// Set pins the vector returned for an exact text.
func (f *FakeEmbedder) Set(text string, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned[text] = append([]float32(nil), vec...)
}

func (f *FakeEmbedder) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	pinned, ok := f.pinned[text]
	f.mu.RUnlock()
	if ok {
		return append([]float32(nil), pinned...), nil
	}

	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, f.dims)
	for i := range vec {
		hi := sum[(2*i)%len(sum)]
		lo := sum[(2*i+1)%len(sum)]
		vec[i] = float32(uint16(hi)<<8|uint16(lo))/65535*2 - 1
	}
	return vec, nil
}
