package embed

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

const geminiDimensions = 768

// GeminiEmbedder calls the Gemini embedding API through the official
// genai client.
type GeminiEmbedder struct {
	cli   *genai.Client
	model string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiEmbedder{cli: cli, model: model}, nil
}

func (g *GeminiEmbedder) Name() string { return "gemini:" + g.model }

func (g *GeminiEmbedder) Dimensions() int { return geminiDimensions }

func (g *GeminiEmbedder) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	taskType := "RETRIEVAL_DOCUMENT"
	if task == TaskQuery {
		taskType = "RETRIEVAL_QUERY"
	}
	resp, err := g.cli.Models.EmbedContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.EmbedContentConfig{TaskType: taskType},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embed gemini: empty embedding")
	}
	return resp.Embeddings[0].Values, nil
}
