// Package llm holds the remote language-model collaborators used by the
// NLP engine: chat completion, embeddings and speech-to-text.
package llm

import (
	"context"
	"errors"
)

// Roles of a chat turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("llm: empty response")

// Turn is one message of a conversation sent to a model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request. System is sent as the provider's
// system instruction; Turns are sent in order.
type Request struct {
	System string
	Turns  []Turn
}

// LLM is a text completion collaborator registered under a name.
type LLM interface {
	// Name is the registry name, also recorded as the classifier of
	// predictions made through this model.
	Name() string
	Model() string
	// Complete sends a single user prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, req Request) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// SpeechToText transcribes an audio clip.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
