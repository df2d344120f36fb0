package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/breaker"
)

// OpenAIConfig configures the OpenAI client.
type OpenAIConfig struct {
	Name           string // registry name, defaults to Model
	APIKey         string
	Model          string // default: gpt-4o-mini
	EmbeddingModel string // default: text-embedding-3-small
	BaseURL        string // default: https://api.openai.com
	Temperature    float64
	Timeout        time.Duration // default: 60s
	Logger         *slog.Logger
}

// OpenAI talks to the chat completions and embeddings endpoints.
type OpenAI struct {
	cfg     OpenAIConfig
	client  *http.Client
	breaker *breaker.Breaker
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAI{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New("openai", breaker.DefaultConfig(), cfg.Logger),
	}
}

type openAIChatRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	Temperature float64 `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Name returns the registry name.
func (c *OpenAI) Name() string { return c.cfg.Name }

// Model returns the chat model.
func (c *OpenAI) Model() string { return c.cfg.Model }

// Complete sends prompt as a single user turn.
func (c *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, Request{Turns: []Turn{{Role: RoleUser, Content: prompt}}})
}

// Chat sends the request to /v1/chat/completions.
func (c *OpenAI) Chat(ctx context.Context, req Request) (string, error) {
	messages := make([]Turn, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, Turn{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Turns...)

	out, err := breaker.Do(ctx, c.breaker, func(ctx context.Context) (string, error) {
		var resp openAIChatResponse
		err := postJSON(ctx, c.client, c.cfg.BaseURL+"/v1/chat/completions", c.headers(),
			openAIChatRequest{Model: c.cfg.Model, Messages: messages, Temperature: c.cfg.Temperature}, &resp)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return out, nil
}

type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embedder returns the embeddings view of the client.
func (c *OpenAI) Embedder() Embedder { return openAIEmbedder{c} }

type openAIEmbedder struct{ c *OpenAI }

func (e openAIEmbedder) Model() string { return e.c.cfg.EmbeddingModel }

// Embed calls /v1/embeddings.
func (e openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c := e.c
	vec, err := breaker.Do(ctx, c.breaker, func(ctx context.Context) ([]float32, error) {
		var resp openAIEmbeddingResponse
		err := postJSON(ctx, c.client, c.cfg.BaseURL+"/v1/embeddings", c.headers(),
			openAIEmbeddingRequest{Model: c.cfg.EmbeddingModel, Input: text}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, ErrEmptyResponse
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	return vec, nil
}

func (c *OpenAI) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

var (
	_ LLM      = (*OpenAI)(nil)
	_ Embedder = openAIEmbedder{}
)
