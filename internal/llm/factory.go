package llm

import (
	"fmt"
	"log/slog"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
)

// Providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// FromProperties creates an LLM for provider from the nlp.* properties.
// An empty name registers the model under its model id.
func FromProperties(provider, name string, props *config.Properties, logger *slog.Logger) (LLM, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			Name:           name,
			APIKey:         props.String(config.OpenAIAPIKey),
			Model:          props.String(config.OpenAIModel),
			EmbeddingModel: props.String(config.EmbeddingModel),
			Logger:         logger,
		}), nil
	case ProviderAnthropic:
		return NewAnthropic(AnthropicConfig{
			Name:   name,
			APIKey: props.String(config.AnthropicAPIKey),
			Model:  props.String(config.AnthropicModel),
			Logger: logger,
		}), nil
	case ProviderOllama, "":
		return NewOllama(OllamaConfig{
			Name:    name,
			BaseURL: props.String(config.OllamaURL),
			Model:   props.String(config.OllamaModel),
			Logger:  logger,
		}), nil
	}
	return nil, fmt.Errorf("unsupported LLM provider: %q", provider)
}

// EmbedderFromProperties returns the embedding client of provider. Anthropic
// has no embeddings endpoint and yields an error.
func EmbedderFromProperties(provider string, props *config.Properties, logger *slog.Logger) (Embedder, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:         props.String(config.OpenAIAPIKey),
			EmbeddingModel: props.String(config.EmbeddingModel),
			Logger:         logger,
		}).Embedder(), nil
	case ProviderOllama, "":
		return NewOllama(OllamaConfig{BaseURL: props.String(config.OllamaURL), Logger: logger}).Embedder(), nil
	}
	return nil, fmt.Errorf("provider %q has no embeddings", provider)
}

// SpeechToTextFromProperties returns the transcription client configured by
// nlp.speech2text.model, using the OpenAI key.
func SpeechToTextFromProperties(props *config.Properties, logger *slog.Logger) SpeechToText {
	return NewWhisper(WhisperConfig{
		APIKey:   props.String(config.OpenAIAPIKey),
		Model:    props.String(config.Speech2TextModel),
		Language: props.String(config.NLPLanguage),
		Logger:   logger,
	})
}
