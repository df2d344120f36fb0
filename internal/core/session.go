package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/monitoring"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/rag"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// PrevStateKey is the session variable holding the state a global state
// component was entered from.
const PrevStateKey = "prev_state"

// Session is the conversation of one user with the agent.
type Session struct {
	id       string
	agent    *Agent
	platform Platform
	log      *slog.Logger

	// mu serializes the handling of inbound events. The fields below it are
	// only touched while it is held.
	mu         sync.Mutex
	current    string
	message    string
	file       *types.File
	prediction *types.IntentClassifierPrediction
	flags      struct {
		predictedIntent bool
		file            bool
	}

	varsMu sync.RWMutex
	vars   map[string]any

	historyMu sync.Mutex
	history   []types.Message
	lastStamp time.Time
}

func newSession(id string, a *Agent, p Platform) *Session {
	platformName := ""
	if p != nil {
		platformName = p.Name()
	}
	return &Session{
		id:       id,
		agent:    a,
		platform: p,
		log:      a.logger.With(slog.String("session", id), slog.String("platform", platformName)),
		current:  a.initial.name,
		vars:     make(map[string]any),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Agent() *Agent { return s.agent }

// Platform returns the platform the session talks through, nil for sessions
// created without one.
func (s *Session) Platform() Platform { return s.platform }

// CurrentState returns the name of the state the session is in.
func (s *Session) CurrentState() string { return s.current }

// Message returns the last user message.
func (s *Session) Message() string { return s.message }

// File returns the last file received from the user.
func (s *Session) File() *types.File { return s.file }

// Prediction returns the intent prediction of the last user message.
func (s *Session) Prediction() *types.IntentClassifierPrediction { return s.prediction }

func (s *Session) logger() *slog.Logger { return s.log }

func (s *Session) clearFlags() {
	s.flags.predictedIntent = false
	s.flags.file = false
}

// Set stores a session variable.
func (s *Session) Set(key string, value any) {
	s.varsMu.Lock()
	s.vars[key] = value
	s.varsMu.Unlock()
}

// Get returns a session variable.
func (s *Session) Get(key string) (any, bool) {
	s.varsMu.RLock()
	defer s.varsMu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

// Delete removes a session variable.
func (s *Session) Delete(key string) {
	s.varsMu.Lock()
	delete(s.vars, key)
	s.varsMu.Unlock()
}

// saveMessage appends msg to the history, stamping it after the previous
// message, and records it in the monitoring database.
func (s *Session) saveMessage(msg types.Message) {
	s.historyMu.Lock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if !msg.Timestamp.After(s.lastStamp) {
		msg.Timestamp = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = msg.Timestamp
	s.history = append(s.history, msg)
	s.historyMu.Unlock()

	s.agent.Monitoring().InsertChat(monitoring.ChatRecord{Agent: s.agent.name, SessionID: s.id, Message: msg})
}

// ChatHistory returns the last n messages of the conversation, oldest first,
// or all of them when n <= 0. With monitoring enabled the history is read
// from the database.
func (s *Session) ChatHistory(ctx context.Context, n int) []types.Message {
	if sink := s.agent.Monitoring(); sink.Enabled() {
		messages, err := sink.SelectChat(ctx, s.agent.name, s.id, n)
		if err == nil {
			return messages
		}
		s.log.Warn("could not read the chat history from the monitoring database", slog.Any("error", err))
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	h := s.history
	if n > 0 && n < len(h) {
		h = h[len(h)-n:]
	}
	return append([]types.Message(nil), h...)
}

// move takes transition t and runs the destination state.
func (s *Session) move(ctx context.Context, t *Transition) {
	s.log.Info(t.Log())
	s.agent.Monitoring().InsertTransition(monitoring.TransitionRecord{
		Agent:     s.agent.name,
		SessionID: s.id,
		Source:    t.Source,
		Dest:      t.Dest,
		Event:     t.Event.String(),
		Info:      t.Event.Info(),
	})
	if s.agent.inGlobalComponent(t.Dest) && !s.agent.inGlobalComponent(t.Source) {
		s.Set(PrevStateKey, t.Source)
	}
	s.clearFlags()
	s.current = t.Dest
	s.agent.states[t.Dest].run(ctx, s)
}

// ReplyMessage runs the agent message processors on msg, stores it and
// sends it through the session platform.
func (s *Session) ReplyMessage(ctx context.Context, msg types.Message) error {
	msg.IsUser = false
	msg = s.agent.process(ctx, s, msg, AgentMessages)
	s.saveMessage(msg)
	if s.platform == nil {
		return nil
	}
	return s.platform.Reply(ctx, s, msg)
}

// Reply sends a text message.
func (s *Session) Reply(ctx context.Context, text string) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageStr, text, false))
}

// ReplyMarkdown sends a Markdown formatted message.
func (s *Session) ReplyMarkdown(ctx context.Context, text string) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageMarkdown, text, false))
}

// ReplyHTML sends an HTML formatted message.
func (s *Session) ReplyHTML(ctx context.Context, text string) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageHTML, text, false))
}

func (s *Session) ReplyFile(ctx context.Context, f *types.File) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageFile, f, false))
}

func (s *Session) ReplyImage(ctx context.Context, f *types.File) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageImage, f, false))
}

func (s *Session) ReplyLocation(ctx context.Context, latitude, longitude float64) error {
	loc := types.Location{Latitude: latitude, Longitude: longitude}
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageLocation, loc, false))
}

// ReplyOptions asks the user to pick one of options.
func (s *Session) ReplyOptions(ctx context.Context, options []string) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageOptions, options, false))
}

func (s *Session) ReplyDataFrame(ctx context.Context, df types.DataFrame) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageDataFrame, df, false))
}

// ReplyPlotly sends a figure in plotly JSON form.
func (s *Session) ReplyPlotly(ctx context.Context, figure json.RawMessage) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessagePlotly, figure, false))
}

func (s *Session) ReplyRAG(ctx context.Context, answer *types.RAGMessage) error {
	return s.ReplyMessage(ctx, types.NewMessage(types.MessageRAGAnswer, answer, false))
}

// LLM returns the language model registered under name.
func (s *Session) LLM(name string) (llm.LLM, bool) {
	return s.agent.nlp.LLM(name)
}

// RunRAG answers question with the agent RAG. An empty question uses the
// last user message.
func (s *Session) RunRAG(ctx context.Context, question string, opts rag.RunOptions) (*types.RAGMessage, error) {
	r, err := s.agent.nlp.RAG()
	if err != nil {
		return nil, err
	}
	if question == "" {
		question = s.message
	}
	return r.Run(ctx, question, s.ChatHistory(ctx, opts.NumContext), opts)
}
