// Package telegram serves an agent through a Telegram bot. Updates are long
// polled; every chat is a session handled by its own worker goroutine.
package telegram

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Name is the platform name recorded with its sessions.
const Name = "telegram"

// ResetCommand restarts the session of the chat.
const ResetCommand = "/reset"

// OptionsPrompt is the text shown above an options keyboard.
const OptionsPrompt = "Choose an option:"

const (
	mailboxSize      = 64
	errorBackoff     = 2 * time.Second
	DefaultPollWait  = 30 * time.Second
	parseModeMD      = "Markdown"
	parseModeHTML    = "HTML"
	dataFrameCSVName = "dataframe.csv"
	plotlyJSONName   = "plot.json"
)

// ErrNoToken is returned by Initialize when telegram.token is not set.
var ErrNoToken = errors.New("telegram: telegram.token is not set")

// Platform is the Telegram bot.
type Platform struct {
	agent  *core.Agent
	log    *slog.Logger
	client *Client

	baseURL  string
	pollWait time.Duration
	limit    rate.Limit
	burst    int

	mu      sync.Mutex
	chats   map[string]chan *Message
	workers sync.WaitGroup
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Platform.
type Option func(*Platform)

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(url string) Option {
	return func(p *Platform) { p.baseURL = url }
}

// WithPollWait sets the long polling timeout.
func WithPollWait(d time.Duration) Option {
	return func(p *Platform) { p.pollWait = d }
}

// WithRateLimit sets the outbound message rate.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(p *Platform) {
		p.limit = limit
		p.burst = burst
	}
}

// New creates an uninitialized platform.
func New(opts ...Option) *Platform {
	p := &Platform{
		log:      slog.Default(),
		pollWait: DefaultPollWait,
		chats:    make(map[string]chan *Message),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Use creates a platform and registers it in a.
func Use(a *core.Agent, opts ...Option) *Platform {
	p := New(opts...)
	a.UsePlatform(p)
	return p
}

func (p *Platform) Name() string { return Name }

// Client returns the Bot API client, nil before Initialize.
func (p *Platform) Client() *Client { return p.client }

// Initialize creates the Bot API client from telegram.token.
func (p *Platform) Initialize(a *core.Agent) error {
	token := a.Properties().String(config.TelegramToken)
	if token == "" {
		return ErrNoToken
	}
	p.agent = a
	p.log = a.Logger().With(slog.String("platform", Name))
	p.client = NewClient(ClientConfig{
		Token:   token,
		BaseURL: p.baseURL,
		Rate:    p.limit,
		Burst:   p.burst,
		Logger:  p.log,
	})
	return nil
}

// Start polls updates until ctx is cancelled or Stop is called, then waits
// for the chat workers to finish their queued messages.
func (p *Platform) Start(ctx context.Context) error {
	if p.client == nil {
		return errors.New("telegram: platform not initialized")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()
	defer close(done)
	defer cancel()

	p.log.Info("telegram polling started")
	var offset int64
	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, offset, p.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.log.Error("failed to get telegram updates", slog.Any("error", err))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message != nil {
				p.dispatch(ctx, u.Message)
			}
		}
	}

	p.mu.Lock()
	for id, mailbox := range p.chats {
		close(mailbox)
		delete(p.chats, id)
	}
	p.mu.Unlock()
	p.workers.Wait()
	p.log.Info("telegram polling stopped")
	return nil
}

// Stop cancels polling and waits for Start to return.
func (p *Platform) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch queues m in the mailbox of its chat, starting the chat worker on
// the first message. Messages of one chat are handled in arrival order.
func (p *Platform) dispatch(ctx context.Context, m *Message) {
	id := strconv.FormatInt(m.Chat.ID, 10)
	p.mu.Lock()
	mailbox, ok := p.chats[id]
	if !ok {
		mailbox = make(chan *Message, mailboxSize)
		p.chats[id] = mailbox
		p.workers.Add(1)
		go p.work(ctx, id, mailbox)
	}
	p.mu.Unlock()

	select {
	case mailbox <- m:
	case <-ctx.Done():
	}
}

func (p *Platform) work(ctx context.Context, id string, mailbox <-chan *Message) {
	defer p.workers.Done()
	for m := range mailbox {
		// Queued messages are handled even when polling stops.
		if err := p.handle(context.WithoutCancel(ctx), id, m); err != nil {
			p.log.Error("failed to handle telegram message", slog.String("session", id), slog.Any("error", err))
		}
	}
}

func (p *Platform) handle(ctx context.Context, id string, m *Message) error {
	_, err := p.agent.Session(id)
	existed := err == nil
	if _, err := p.agent.GetOrCreateSession(ctx, id, p); err != nil {
		return err
	}
	switch {
	case m.Text == ResetCommand:
		// A new session has just run its initial state.
		if !existed {
			return nil
		}
		_, err := p.agent.Reset(ctx, id)
		return err
	case m.Voice != nil:
		audio, _, err := p.download(ctx, m.Voice.FileID)
		if err != nil {
			return err
		}
		return p.agent.ReceiveVoice(ctx, id, audio)
	case m.Document != nil:
		data, _, err := p.download(ctx, m.Document.FileID)
		if err != nil {
			return err
		}
		return p.agent.ReceiveFile(ctx, id, types.NewFileFromBytes(m.Document.FileName, m.Document.MimeType, data))
	case len(m.Photo) > 0:
		largest := m.Photo[len(m.Photo)-1]
		data, filePath, err := p.download(ctx, largest.FileID)
		if err != nil {
			return err
		}
		return p.agent.ReceiveFile(ctx, id, types.NewFileFromBytes(path.Base(filePath), "image/jpeg", data))
	case strings.HasPrefix(m.Text, "/"):
		// Other commands only open the session.
		return nil
	case m.Text != "":
		return p.agent.ReceiveMessage(ctx, id, m.Text)
	}
	return nil
}

func (p *Platform) download(ctx context.Context, fileID string) ([]byte, string, error) {
	f, err := p.client.GetFile(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	data, err := p.client.Download(ctx, f)
	if err != nil {
		return nil, "", err
	}
	return data, f.FilePath, nil
}

// Send delivers an outbound payload to the chat sessionID.
func (p *Platform) Send(ctx context.Context, sessionID string, payload platform.Payload) error {
	msg, err := platform.ToMessage(payload)
	if err != nil {
		return err
	}
	return p.deliver(ctx, sessionID, msg)
}

// Reply sends an agent message to the chat of s.
func (p *Platform) Reply(ctx context.Context, s *core.Session, msg types.Message) error {
	if err := core.CheckPlatform(p, s); err != nil {
		return err
	}
	return p.deliver(ctx, s.ID(), msg)
}

func (p *Platform) deliver(ctx context.Context, sessionID string, msg types.Message) error {
	chatID, err := strconv.ParseInt(sessionID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: session %q is not a chat id: %w", sessionID, err)
	}
	switch msg.Type {
	case types.MessageStr:
		return p.client.SendMessage(ctx, chatID, msg.Text(), "", nil)
	case types.MessageMarkdown:
		return p.client.SendMessage(ctx, chatID, msg.Text(), parseModeMD, nil)
	case types.MessageHTML:
		return p.client.SendMessage(ctx, chatID, msg.Text(), parseModeHTML, nil)
	case types.MessageFile, types.MessageImage:
		f, ok := msg.Content.(*types.File)
		if !ok {
			return fmt.Errorf("telegram: %s message does not hold a file", msg.Type)
		}
		data, err := f.Bytes()
		if err != nil {
			return err
		}
		if msg.Type == types.MessageImage {
			return p.client.SendPhoto(ctx, chatID, f.Name, data, "")
		}
		return p.client.SendDocument(ctx, chatID, f.Name, data, "")
	case types.MessageLocation:
		loc, ok := msg.Content.(types.Location)
		if !ok {
			return errors.New("telegram: location message does not hold a location")
		}
		return p.client.SendLocation(ctx, chatID, loc.Latitude, loc.Longitude)
	case types.MessageOptions:
		options, ok := msg.Content.([]string)
		if !ok {
			return errors.New("telegram: options message does not hold a list of strings")
		}
		return p.client.SendMessage(ctx, chatID, OptionsPrompt, "", NewReplyKeyboard(options))
	case types.MessageDataFrame:
		df, ok := msg.Content.(types.DataFrame)
		if !ok {
			return errors.New("telegram: dataframe message does not hold a dataframe")
		}
		data, err := dataFrameCSV(df)
		if err != nil {
			return err
		}
		return p.client.SendDocument(ctx, chatID, dataFrameCSVName, data, "")
	case types.MessagePlotly:
		data, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("telegram: failed to encode plotly figure: %w", err)
		}
		return p.client.SendDocument(ctx, chatID, plotlyJSONName, data, "")
	case types.MessageRAGAnswer:
		answer, ok := msg.Content.(*types.RAGMessage)
		if !ok {
			return errors.New("telegram: rag message does not hold an answer")
		}
		return p.client.SendMessage(ctx, chatID, answer.Answer, "", nil)
	}
	return fmt.Errorf("%w: %s", platform.ErrUnsupportedMessage, msg.Type)
}

func dataFrameCSV(df types.DataFrame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(df.Columns); err != nil {
		return nil, err
	}
	for _, row := range df.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

var _ core.Platform = (*Platform)(nil)
