package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const openAIDimensions = 1536

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAIEmbedder creates an embedder against api.openai.com. If
// apiKey is empty, it falls back to the OPENAI_API_KEY env var.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.openai.com/v1/embeddings",
	}, nil
}

func (o *OpenAIEmbedder) Name() string { return "openai:" + o.model }

func (o *OpenAIEmbedder) Dimensions() int { return openAIDimensions }

type openAIEmbedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	b, _ := json.Marshal(openAIEmbedReq{Model: o.model, Input: []string{text}})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		const maxBody = 2048
		if len(raw) > maxBody {
			raw = raw[:maxBody]
		}
		return nil, fmt.Errorf("embed openai: unexpected status %s: %s", resp.Status, string(raw))
	}

	var out openAIEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed openai: empty embedding")
	}
	return out.Data[0].Embedding, nil
}
