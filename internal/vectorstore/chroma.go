package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Chroma talks to a Chroma server over its HTTP API. The collection is
// created on first use; failures are retried on the next call rather
// than cached.
type Chroma struct {
	http       *http.Client
	baseURL    string
	collection string

	mu     sync.Mutex
	collID string
}

func NewChroma(baseURL, collection string) *Chroma {
	if collection == "" {
		collection = "ladder_examples"
	}
	return &Chroma{
		http:       &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
	}
}

func (c *Chroma) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collID != "" {
		return c.collID, nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/collections", map[string]any{
		"name":          c.collection,
		"get_or_create": true,
	}, &out); err != nil {
		return "", err
	}
	c.collID = out.ID
	return c.collID, nil
}

// Reset deletes the collection server-side; the next call recreates
// it empty. Do not run concurrently with queries.
func (c *Chroma) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/collections/"+c.collection, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 404 means the collection never existed, which is fine for a reset.
	if resp.StatusCode != http.StatusNotFound && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("vectorstore chroma: unexpected status %s", resp.Status)
	}
	c.collID = ""
	return nil
}

func (c *Chroma) Add(ctx context.Context, entries []Entry) error {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	vecs := make([][]float32, 0, len(entries))
	docs := make([]string, 0, len(entries))
	metas := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
		vecs = append(vecs, e.Vector)
		docs = append(docs, e.Document)
		if e.Metadata == nil {
			e.Metadata = map[string]string{}
		}
		metas = append(metas, e.Metadata)
	}
	return c.post(ctx, "/api/v1/collections/"+id+"/upsert", map[string]any{
		"ids":        ids,
		"embeddings": vecs,
		"documents":  docs,
		"metadatas":  metas,
	}, nil)
}

func (c *Chroma) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	var out struct {
		IDs       [][]string            `json:"ids"`
		Distances [][]float64           `json:"distances"`
		Documents [][]string            `json:"documents"`
		Metadatas [][]map[string]string `json:"metadatas"`
	}
	err = c.post(ctx, "/api/v1/collections/"+id+"/query", map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.IDs) == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(out.IDs[0]))
	for i, hitID := range out.IDs[0] {
		h := Hit{ID: hitID}
		if len(out.Distances) > 0 && i < len(out.Distances[0]) {
			h.Distance = out.Distances[0][i]
		}
		if len(out.Documents) > 0 && i < len(out.Documents[0]) {
			h.Document = out.Documents[0][i]
		}
		if len(out.Metadatas) > 0 && i < len(out.Metadatas[0]) {
			h.Metadata = out.Metadatas[0][i]
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (c *Chroma) Count(ctx context.Context) (int, error) {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/collections/"+id+"/count", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("vectorstore chroma: unexpected status %s", resp.Status)
	}
	var n int
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Chroma) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		const maxBody = 2048
		if len(raw) > maxBody {
			raw = raw[:maxBody]
		}
		return fmt.Errorf("vectorstore chroma: unexpected status %s: %s", resp.Status, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
