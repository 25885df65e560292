package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"laddergen/internal/tester"
)

func newChromaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		tester.NoErr(t, json.NewDecoder(r.Body).Decode(&body))
		tester.Eq(t, body["name"], any("ladder_examples"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "coll-1"})
	})
	mux.HandleFunc("/api/v1/collections/coll-1/upsert", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/v1/collections/coll-1/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ids":       [][]string{{"safety", "auto"}},
			"distances": [][]float64{{0.1, 0.9}},
			"documents": [][]string{{"emergency stop rung", "step sequence"}},
			"metadatas": [][]map[string]string{{{"routine_type": "safety"}, {"routine_type": "auto"}}},
		})
	})
	mux.HandleFunc("/api/v1/collections/coll-1/count", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(2)
	})
	mux.HandleFunc("/api/v1/collections/ladder_examples", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func TestChromaRoundTrip(t *testing.T) {
	srv := newChromaTestServer(t)
	defer srv.Close()

	c := NewChroma(srv.URL, "")
	ctx := context.Background()

	err := c.Add(ctx, []Entry{{ID: "safety", Vector: []float32{1, 0}, Document: "emergency stop rung"}})
	tester.NoErr(t, err)

	hits, err := c.Query(ctx, []float32{1, 0}, 2)
	tester.NoErr(t, err)
	tester.Eq(t, len(hits), 2)
	tester.Eq(t, hits[0].ID, "safety")
	tester.Eq(t, hits[0].Distance, 0.1)
	tester.Eq(t, hits[0].Metadata["routine_type"], "safety")

	n, err := c.Count(ctx)
	tester.NoErr(t, err)
	tester.Eq(t, n, 2)
}

func TestChromaResetDeletesCollection(t *testing.T) {
	srv := newChromaTestServer(t)
	defer srv.Close()

	c := NewChroma(srv.URL, "")
	tester.NoErr(t, c.Reset(context.Background()))

	// A fresh collection is ensured on the next operation.
	n, err := c.Count(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, n, 2)
}

func TestChromaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChroma(srv.URL, "examples")
	_, err := c.Query(context.Background(), []float32{1}, 1)
	tester.Err(t, err)
}
