package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/breaker"
)

// AnthropicConfig configures the Anthropic client.
type AnthropicConfig struct {
	Name      string
	APIKey    string
	Model     string // default: claude-haiku-4-5-20251001
	BaseURL   string // default: https://api.anthropic.com
	MaxTokens int    // default: 4096
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Anthropic talks to the Messages API.
type Anthropic struct {
	cfg     AnthropicConfig
	client  *http.Client
	breaker *breaker.Breaker
}

// NewAnthropic creates an Anthropic client.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Anthropic{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New("anthropic", breaker.DefaultConfig(), cfg.Logger),
	}
}

type anthropicRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    string `json:"system,omitempty"`
	Messages  []Turn `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Name returns the registry name.
func (c *Anthropic) Name() string { return c.cfg.Name }

// Model returns the model id.
func (c *Anthropic) Model() string { return c.cfg.Model }

// Complete sends prompt as a single user turn.
func (c *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, Request{Turns: []Turn{{Role: RoleUser, Content: prompt}}})
}

// Chat calls /v1/messages. System turns inside req.Turns are folded into the
// system instruction since the API only accepts user and assistant roles.
func (c *Anthropic) Chat(ctx context.Context, req Request) (string, error) {
	system := []string{}
	if req.System != "" {
		system = append(system, req.System)
	}
	messages := make([]Turn, 0, len(req.Turns))
	for _, t := range req.Turns {
		if t.Role == RoleSystem {
			system = append(system, t.Content)
			continue
		}
		messages = append(messages, t)
	}
	body := anthropicRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    strings.Join(system, "\n\n"),
		Messages:  messages,
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}

	out, err := breaker.Do(ctx, c.breaker, func(ctx context.Context) (string, error) {
		var resp anthropicResponse
		if err := postJSON(ctx, c.client, c.cfg.BaseURL+"/v1/messages", headers, body, &resp); err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "" || block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", ErrEmptyResponse
		}
		return sb.String(), nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	return out, nil
}

var _ LLM = (*Anthropic)(nil)
