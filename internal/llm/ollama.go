package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/breaker"
)

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	Name           string
	BaseURL        string // default: http://localhost:11434
	Model          string // default: qwen2.5:7b
	EmbeddingModel string // default: nomic-embed-text
	Timeout        time.Duration
	Logger         *slog.Logger
}

// Ollama talks to a local Ollama server.
type Ollama struct {
	cfg     OllamaConfig
	client  *http.Client
	breaker *breaker.Breaker
}

// NewOllama creates an Ollama client.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:7b"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}
	if cfg.Timeout == 0 {
		// Local models are slow on first load.
		cfg.Timeout = 120 * time.Second
	}
	return &Ollama{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New("ollama", breaker.DefaultConfig(), cfg.Logger),
	}
}

type ollamaChatRequest struct {
	Model    string `json:"model"`
	Messages []Turn `json:"messages"`
	Stream   bool   `json:"stream"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Name returns the registry name.
func (c *Ollama) Name() string { return c.cfg.Name }

// Model returns the chat model.
func (c *Ollama) Model() string { return c.cfg.Model }

// Complete sends prompt as a single user turn.
func (c *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, Request{Turns: []Turn{{Role: RoleUser, Content: prompt}}})
}

// Chat calls /api/chat without streaming.
func (c *Ollama) Chat(ctx context.Context, req Request) (string, error) {
	messages := make([]Turn, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, Turn{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Turns...)

	out, err := breaker.Do(ctx, c.breaker, func(ctx context.Context) (string, error) {
		var resp ollamaChatResponse
		err := postJSON(ctx, c.client, c.cfg.BaseURL+"/api/chat", nil,
			ollamaChatRequest{Model: c.cfg.Model, Messages: messages}, &resp)
		if err != nil {
			return "", err
		}
		if resp.Message.Content == "" {
			return "", ErrEmptyResponse
		}
		return resp.Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return out, nil
}

// Embedder returns the embeddings view of the client.
func (c *Ollama) Embedder() Embedder { return ollamaEmbedder{c} }

type ollamaEmbedder struct{ c *Ollama }

func (e ollamaEmbedder) Model() string { return e.c.cfg.EmbeddingModel }

// Embed calls /api/embed and returns the first embedding.
func (e ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c := e.c
	vec, err := breaker.Do(ctx, c.breaker, func(ctx context.Context) ([]float32, error) {
		var resp ollamaEmbedResponse
		err := postJSON(ctx, c.client, c.cfg.BaseURL+"/api/embed", nil,
			ollamaEmbedRequest{Model: c.cfg.EmbeddingModel, Input: text}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
			return nil, ErrEmptyResponse
		}
		return resp.Embeddings[0], nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	return vec, nil
}

var (
	_ LLM      = (*Ollama)(nil)
	_ Embedder = ollamaEmbedder{}
)
