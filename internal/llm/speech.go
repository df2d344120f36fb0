package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/breaker"
)

// ErrNoAudio is returned when Transcribe is given an empty clip.
var ErrNoAudio = errors.New("speech: empty audio")

// WhisperConfig configures the OpenAI transcription client.
type WhisperConfig struct {
	APIKey   string
	Model    string // default: whisper-1
	Language string // ISO-639-1 hint, optional
	BaseURL  string // default: https://api.openai.com
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Whisper transcribes audio through /v1/audio/transcriptions.
type Whisper struct {
	cfg     WhisperConfig
	client  *http.Client
	breaker *breaker.Breaker
}

// NewWhisper creates a transcription client.
func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Whisper{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New("speech2text", breaker.DefaultConfig(), cfg.Logger),
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the clip and returns the recognised text.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoAudio
	}
	if filename == "" {
		filename = "audio.wav"
	}

	text, err := breaker.Do(ctx, w.breaker, func(ctx context.Context) (string, error) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		_ = mw.WriteField("model", w.cfg.Model)
		if w.cfg.Language != "" {
			_ = mw.WriteField("language", w.cfg.Language)
		}
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(audio); err != nil {
			return "", err
		}
		if err := mw.Close(); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.BaseURL+"/v1/audio/transcriptions", &body)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)

		var resp transcriptionResponse
		if err := do(w.client, req, &resp); err != nil {
			return "", err
		}
		return resp.Text, nil
	})
	if err != nil {
		return "", fmt.Errorf("speech2text: %w", err)
	}
	return text, nil
}

var _ SpeechToText = (*Whisper)(nil)
