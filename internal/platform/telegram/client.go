package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/breaker"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Outbound rate allowed by the Bot API for a single bot.
const (
	DefaultRate  = rate.Limit(30)
	DefaultBurst = 30
)

// ClientConfig configures a Bot API client.
type ClientConfig struct {
	Token   string
	BaseURL string // default: DefaultBaseURL
	Timeout time.Duration
	Rate    rate.Limit
	Burst   int
	Logger  *slog.Logger
}

// Client calls the Telegram Bot API. Sends and downloads go through a
// circuit breaker and a rate limiter; long polling does not.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *breaker.Breaker
	limiter *rate.Limiter
}

// NewClient creates a Bot API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{},
		breaker: breaker.New("telegram", breaker.DefaultConfig(), cfg.Logger),
		limiter: rate.NewLimiter(cfg.Rate, cfg.Burst),
	}
}

// APIError is an answer with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed with %d: %s", e.Method, e.Code, e.Description)
}

type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// Bot API objects, limited to the fields the platform reads.
type (
	Update struct {
		UpdateID int64    `json:"update_id"`
		Message  *Message `json:"message"`
	}

	Message struct {
		MessageID int64       `json:"message_id"`
		Chat      Chat        `json:"chat"`
		From      *User       `json:"from"`
		Text      string      `json:"text"`
		Caption   string      `json:"caption"`
		Document  *Document   `json:"document"`
		Photo     []PhotoSize `json:"photo"`
		Voice     *Voice      `json:"voice"`
	}

	Chat struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	}

	User struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	}

	Document struct {
		FileID   string `json:"file_id"`
		FileName string `json:"file_name"`
		MimeType string `json:"mime_type"`
	}

	PhotoSize struct {
		FileID   string `json:"file_id"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		FileSize int    `json:"file_size"`
	}

	Voice struct {
		FileID   string `json:"file_id"`
		Duration int    `json:"duration"`
		MimeType string `json:"mime_type"`
	}

	File struct {
		FileID   string `json:"file_id"`
		FilePath string `json:"file_path"`
	}
)

// ReplyKeyboard is a one-time keyboard with one button per row.
type ReplyKeyboard struct {
	Keyboard        [][]KeyboardButton `json:"keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
}

type KeyboardButton struct {
	Text string `json:"text"`
}

// NewReplyKeyboard lays options out one per row.
func NewReplyKeyboard(options []string) *ReplyKeyboard {
	kb := &ReplyKeyboard{OneTimeKeyboard: true, ResizeKeyboard: true}
	for _, o := range options {
		kb.Keyboard = append(kb.Keyboard, []KeyboardButton{{Text: o}})
	}
	return kb
}

func (c *Client) methodURL(method string) string {
	return c.cfg.BaseURL + "/bot" + c.cfg.Token + "/" + method
}

// GetUpdates long-polls for updates after offset, waiting up to timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.post(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends text, formatted by parseMode ("", "Markdown" or "HTML").
// markup is an optional reply markup object.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string, markup any) error {
	params := map[string]any{"chat_id": chatID, "text": text}
	if parseMode != "" {
		params["parse_mode"] = parseMode
	}
	if markup != nil {
		params["reply_markup"] = markup
	}
	return c.send(ctx, "sendMessage", func(ctx context.Context) error {
		return c.post(ctx, "sendMessage", params, nil)
	})
}

// SendLocation sends a map pin.
func (c *Client) SendLocation(ctx context.Context, chatID int64, latitude, longitude float64) error {
	params := map[string]any{"chat_id": chatID, "latitude": latitude, "longitude": longitude}
	return c.send(ctx, "sendLocation", func(ctx context.Context) error {
		return c.post(ctx, "sendLocation", params, nil)
	})
}

// SendDocument uploads data as a document.
func (c *Client) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	return c.send(ctx, "sendDocument", func(ctx context.Context) error {
		return c.upload(ctx, "sendDocument", "document", chatID, name, data, caption)
	})
}

// SendPhoto uploads data as a photo.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	return c.send(ctx, "sendPhoto", func(ctx context.Context) error {
		return c.upload(ctx, "sendPhoto", "photo", chatID, name, data, caption)
	})
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	return breaker.Do(ctx, c.breaker, func(ctx context.Context) (*File, error) {
		var f File
		if err := c.post(ctx, "getFile", map[string]any{"file_id": fileID}, &f); err != nil {
			return nil, err
		}
		return &f, nil
	})
}

// Download fetches a file returned by GetFile.
func (c *Client) Download(ctx context.Context, f *File) ([]byte, error) {
	return breaker.Do(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		url := c.cfg.BaseURL + "/file/bot" + c.cfg.Token + "/" + f.FilePath
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("telegram: failed to create download request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("telegram: failed to download %s: %w", f.FilePath, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Method: "download", Code: resp.StatusCode, Description: resp.Status}
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("telegram: failed to read %s: %w", f.FilePath, err)
		}
		return data, nil
	})
}

// send waits for the rate limiter, then runs fn through the breaker.
func (c *Client) send(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: %s rate limited: %w", method, err)
	}
	return breaker.Run(ctx, c.breaker, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		return fn(ctx)
	})
}

func (c *Client) post(ctx context.Context, method string, params, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("telegram: failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(method, req, out)
}

func (c *Client) upload(ctx context.Context, method, field string, chatID int64, name string, data []byte, caption string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("chat_id", fmt.Sprint(chatID))
	if caption != "" {
		_ = mw.WriteField("caption", caption)
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("telegram: failed to create %s form: %w", method, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("telegram: failed to write %s form: %w", method, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("telegram: failed to close %s form: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &body)
	if err != nil {
		return fmt.Errorf("telegram: failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(method, req, nil)
}

func (c *Client) do(method string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("telegram: failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !r.OK {
		return &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("telegram: failed to decode %s result: %w", method, err)
	}
	return nil
}
