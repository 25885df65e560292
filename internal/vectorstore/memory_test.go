package vectorstore

import (
	"context"
	"testing"

	"laddergen/internal/tester"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(3)
	err := m.Add(context.Background(), []Entry{
		{ID: "safety", Vector: []float32{1, 0, 0}, Document: "emergency stop rung", Metadata: map[string]string{"routine_type": "safety"}},
		{ID: "startstop", Vector: []float32{0, 1, 0}, Document: "seal-in start circuit", Metadata: map[string]string{"routine_type": "start_stop"}},
		{ID: "auto", Vector: []float32{0, 0, 1}, Document: "step sequence", Metadata: map[string]string{"routine_type": "auto"}},
	})
	tester.NoErr(t, err)
	return m
}

func TestMemoryQueryOrdersByDistance(t *testing.T) {
	m := seedMemory(t)

	hits, err := m.Query(context.Background(), []float32{0.9, 0.1, 0}, 2)
	tester.NoErr(t, err)
	tester.Eq(t, len(hits), 2)
	tester.Eq(t, hits[0].ID, "safety")
	tester.Eq(t, hits[1].ID, "startstop")
	tester.True(t, hits[0].Distance < hits[1].Distance)
	tester.Eq(t, hits[0].Metadata["routine_type"], "safety")
}

func TestMemoryQueryKLargerThanCorpus(t *testing.T) {
	m := seedMemory(t)

	hits, err := m.Query(context.Background(), []float32{1, 0, 0}, 10)
	tester.NoErr(t, err)
	tester.Eq(t, len(hits), 3)
}

func TestMemoryAddUpsertsByID(t *testing.T) {
	m := seedMemory(t)

	err := m.Add(context.Background(), []Entry{
		{ID: "safety", Vector: []float32{0, 0, 1}, Document: "updated"},
	})
	tester.NoErr(t, err)

	n, err := m.Count(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, n, 3)

	hits, err := m.Query(context.Background(), []float32{0, 0, 1}, 1)
	tester.NoErr(t, err)
	tester.Eq(t, hits[0].Document, "updated")
}

func TestMemoryDimensionMismatch(t *testing.T) {
	m := NewMemory(3)

	err := m.Add(context.Background(), []Entry{{ID: "bad", Vector: []float32{1, 2}}})
	tester.True(t, err == ErrDimensionMismatch)

	_, err = m.Query(context.Background(), []float32{1}, 1)
	tester.True(t, err == ErrDimensionMismatch)
}

func TestMemoryQueryZeroK(t *testing.T) {
	m := seedMemory(t)

	hits, err := m.Query(context.Background(), []float32{1, 0, 0}, 0)
	tester.NoErr(t, err)
	tester.Eq(t, len(hits), 0)
}

func TestMemoryResetDropsEverything(t *testing.T) {
	m := seedMemory(t)

	tester.NoErr(t, m.Reset(context.Background()))

	n, err := m.Count(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, n, 0)

	// The store stays usable after a reset.
	err = m.Add(context.Background(), []Entry{{ID: "x", Vector: []float32{1, 0, 0}}})
	tester.NoErr(t, err)
	n, err = m.Count(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, n, 1)
}

func TestMemoryTieBreaksByID(t *testing.T) {
	m := NewMemory(2)
	err := m.Add(context.Background(), []Entry{
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
	})
	tester.NoErr(t, err)

	hits, err := m.Query(context.Background(), []float32{1, 0}, 2)
	tester.NoErr(t, err)
	tester.Eq(t, hits[0].ID, "a")
	tester.Eq(t, hits[1].ID, "b")
}
