// Package monitoring records what happens in agent sessions: sessions, intent
// predictions with their parameters, state transitions and chat messages.
// Writes are best effort and never fail the conversation.
package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Errors returned by the monitoring database.
var (
	ErrUnknownDialect  = errors.New("monitoring: unknown dialect")
	ErrSessionNotFound = errors.New("monitoring: session not found")
	ErrUnknownTable    = errors.New("monitoring: unknown table")
)

// Table names.
const (
	TableSession          = "session"
	TableIntentPrediction = "intent_prediction"
	TableParameter        = "parameter"
	TableTransition       = "transition"
	TableChat             = "chat"
)

// Tables lists the monitoring tables in dependency order.
var Tables = []string{TableSession, TableIntentPrediction, TableParameter, TableTransition, TableChat}

// SessionRecord is a row of the session table.
type SessionRecord struct {
	Agent     string
	SessionID string
	Platform  string
	Timestamp time.Time
}

// PredictionRecord is a row of the intent_prediction table plus its
// parameter rows.
type PredictionRecord struct {
	Agent      string
	SessionID  string
	Message    string
	Classifier string
	Intent     string
	Score      float64
	Parameters []*types.MatchedParameter
	Timestamp  time.Time
}

// TransitionRecord is a row of the transition table.
type TransitionRecord struct {
	Agent     string
	SessionID string
	Source    string
	Dest      string
	Event     string
	Info      string
	Timestamp time.Time
}

// ChatRecord is a row of the chat table.
type ChatRecord struct {
	Agent     string
	SessionID string
	Message   types.Message
}

// Sink receives monitoring events. InsertSession is synchronous so that the
// other inserts can reference the session row; the rest are queued.
type Sink interface {
	Enabled() bool
	InsertSession(ctx context.Context, r SessionRecord) error
	InsertIntentPrediction(r PredictionRecord)
	InsertTransition(r TransitionRecord)
	InsertChat(r ChatRecord)
	// SelectChat returns the last n messages of a session in chronological
	// order, every message when n <= 0.
	SelectChat(ctx context.Context, agent, sessionID string, n int) ([]types.Message, error)
	Close(ctx context.Context) error
}

// Nop is the sink used when monitoring is disabled. Every call is a no-op.
type Nop struct{}

func (Nop) Enabled() bool                                      { return false }
func (Nop) InsertSession(context.Context, SessionRecord) error { return nil }
func (Nop) InsertIntentPrediction(PredictionRecord)            {}
func (Nop) InsertTransition(TransitionRecord)                  {}
func (Nop) InsertChat(ChatRecord)                              {}
func (Nop) Close(context.Context) error                        { return nil }
func (Nop) SelectChat(context.Context, string, string, int) ([]types.Message, error) {
	return nil, nil
}

// Connect opens the monitoring database described by props. When
// db.monitoring is false, or the database cannot be reached, it returns Nop
// and logs why.
func Connect(ctx context.Context, props *config.Properties, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if !props.Bool(config.DBMonitoring) {
		return Nop{}
	}
	cfg := ConfigFromProperties(props)
	cfg.Logger = logger
	db, err := Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to the monitoring database, monitoring disabled", slog.Any("error", err))
		return Nop{}
	}
	logger.Info("connected to the monitoring database", slog.String("dialect", string(db.dialect)))
	return db
}

var (
	_ Sink = Nop{}
	_ Sink = (*DB)(nil)
)
