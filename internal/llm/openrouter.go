package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// OpenRouterClient calls the OpenRouter Chat Completions API
// (OpenAI-compatible). See: https://openrouter.ai/docs/api-reference
type OpenRouterClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewOpenRouterClient creates an OpenRouter client. If apiKey is empty,
// it falls back to the OPENROUTER_API_KEY env var.
func NewOpenRouterClient(apiKey, model string) (*OpenRouterClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}
	return &OpenRouterClient{
		http:    &http.Client{Timeout: 120 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://openrouter.ai/api/v1/chat/completions",
	}, nil
}

func (o *OpenRouterClient) Name() string { return "openrouter:" + o.model }

func (o *OpenRouterClient) Close() error { return nil }

type orChatReq struct {
	Model       string      `json:"model"`
	Messages    []orMessage `json:"messages"`
	Temperature float32     `json:"temperature"`
	MaxTokens   int32       `json:"max_tokens,omitempty"`
}

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type orChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (o *OpenRouterClient) Generate(ctx context.Context, req Request) (Response, error) {
	body := orChatReq{
		Model:       o.model,
		Messages:    []orMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	b, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(b))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		const maxBody = 2048
		if len(raw) > maxBody {
			raw = raw[:maxBody]
		}
		statusErr := fmt.Errorf("openrouter: unexpected status %s: %s", resp.Status, string(raw))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return Response{}, &RateLimitError{
				Provider:   "openrouter",
				RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
				Err:        statusErr,
			}
		case resp.StatusCode == 400 && strings.Contains(string(raw), "context_length"):
			return Response{}, &PermanentError{Provider: "openrouter", Reason: "context length exceeded", Err: statusErr}
		case resp.StatusCode == 401 || resp.StatusCode == 403:
			return Response{}, &PermanentError{Provider: "openrouter", Reason: "authorization failed", Err: statusErr}
		}
		return Response{}, statusErr
	}

	var out orChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return Response{}, ErrEmptyResponse
	}
	return Response{
		Text:         out.Choices[0].Message.Content,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}, nil
}

func retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
