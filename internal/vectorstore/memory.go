package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is an exact-search in-memory store using L2 distance. It
// backs tests and small corpora; swap in Postgres or Chroma for real
// deployments.
type Memory struct {
	dims int

	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
}

func NewMemory(dims int) *Memory {
	return &Memory{dims: dims, byID: map[string]int{}}
}

func (m *Memory) Add(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if m.dims > 0 && len(e.Vector) != m.dims {
			return ErrDimensionMismatch
		}
		e.Vector = append([]float32(nil), e.Vector...)
		if i, ok := m.byID[e.ID]; ok {
			m.entries[i] = e
			continue
		}
		m.byID[e.ID] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.dims > 0 && len(vector) != m.dims {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.entries))
	for _, e := range m.entries {
		hits = append(hits, Hit{
			ID:       e.ID,
			Distance: l2(vector, e.Vector),
			Document: e.Document,
			Metadata: e.Metadata,
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Reset drops every indexed entry.
func (m *Memory) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.byID = map[string]int{}
	return nil
}

func l2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
