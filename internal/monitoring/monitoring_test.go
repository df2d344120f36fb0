package monitoring_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/monitoring"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

func openSQLite(t *testing.T) *monitoring.DB {
	t.Helper()
	db, err := monitoring.Open(context.Background(), monitoring.Config{
		Dialect:  "sqlite",
		Database: filepath.Join(t.TempDir(), "monitoring.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })
	return db
}

// exercise writes one conversation and checks what was stored.
func exercise(t *testing.T, db *monitoring.DB) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.InsertSession(ctx, monitoring.SessionRecord{Agent: "greetings", SessionID: "s1", Platform: "websocket"}))
	require.NoError(t, db.InsertSession(ctx, monitoring.SessionRecord{Agent: "greetings", SessionID: "s1", Platform: "websocket"}),
		"inserting a session twice is a no-op")

	db.InsertChat(monitoring.ChatRecord{Agent: "greetings", SessionID: "s1",
		Message: types.Message{Type: types.MessageStr, Content: "hi", IsUser: true, Timestamp: base}})
	db.InsertChat(monitoring.ChatRecord{Agent: "greetings", SessionID: "s1",
		Message: types.Message{Type: types.MessageOptions, Content: []string{"yes", "no"}, Timestamp: base.Add(time.Second)}})
	db.InsertChat(monitoring.ChatRecord{Agent: "greetings", SessionID: "s1",
		Message: types.Message{Type: types.MessageStr, Content: "Hello!", Timestamp: base.Add(2 * time.Second)}})
	db.InsertIntentPrediction(monitoring.PredictionRecord{
		Agent: "greetings", SessionID: "s1", Message: "weather in BCN",
		Classifier: "SimpleClassifier", Intent: "weather_intent", Score: 0.9,
		Parameters: []*types.MatchedParameter{
			types.NewMatchedParameter("city", "Barcelona", nil),
			types.NewMatchedParameter("day", nil, nil),
		},
	})
	db.InsertTransition(monitoring.TransitionRecord{Agent: "greetings", SessionID: "s1",
		Source: "s0", Dest: "hello", Event: "intent_matched", Info: "hello_intent"})
	db.InsertTransition(monitoring.TransitionRecord{Agent: "greetings", SessionID: "s1",
		Source: "hello", Dest: "s0", Event: "auto"})
	require.NoError(t, db.Flush(ctx))

	n, err := db.TransitionCount(ctx, "greetings", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = db.TransitionCount(ctx, "other", "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := db.SelectChat(ctx, "greetings", "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "hi", all[0].Content)
	assert.True(t, all[0].IsUser)
	assert.Equal(t, []any{"yes", "no"}, all[1].Content)
	assert.Equal(t, types.MessageOptions, all[1].Type)

	last, err := db.SelectChat(ctx, "greetings", "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "Hello!", last[1].Content)

	_, err = db.SelectChat(ctx, "greetings", "missing", 0)
	assert.ErrorIs(t, err, monitoring.ErrSessionNotFound)

	columns, rows, err := db.Rows(ctx, monitoring.TableParameter, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "intent_prediction_id", "name", "value", "info"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "city", rows[0][2])
	assert.Equal(t, "Barcelona", rows[0][3])
	assert.Equal(t, "", rows[1][3], "unfilled parameters are stored as NULL")
	assert.Equal(t, "{}", rows[1][4])

	_, rows, err = db.Rows(ctx, monitoring.TableSession, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, _, err = db.Rows(ctx, "users; DROP TABLE chat", 0)
	assert.ErrorIs(t, err, monitoring.ErrUnknownTable)
}

func TestSQLite(t *testing.T) {
	exercise(t, openSQLite(t))
}

func TestSQLite_WriteForUnknownSessionIsDropped(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	db.InsertTransition(monitoring.TransitionRecord{Agent: "a", SessionID: "ghost", Source: "x", Dest: "y", Event: "auto"})
	require.NoError(t, db.Flush(ctx))

	n, err := db.TransitionCount(ctx, "a", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_Reset(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.InsertSession(ctx, monitoring.SessionRecord{Agent: "a", SessionID: "s", Platform: "telegram"}))

	require.NoError(t, db.Reset(ctx))
	_, rows, err := db.Rows(ctx, monitoring.TableSession, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = db.SelectChat(ctx, "a", "s", 0)
	assert.ErrorIs(t, err, monitoring.ErrSessionNotFound)
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := monitoring.Open(context.Background(), monitoring.Config{Dialect: "oracle"})
	assert.ErrorIs(t, err, monitoring.ErrUnknownDialect)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	props := config.New()
	sink := monitoring.Connect(ctx, props, nil)
	assert.False(t, sink.Enabled(), "monitoring is off by default")
	assert.Equal(t, monitoring.Nop{}, sink)

	props.Set(config.DBMonitoring, true)
	props.Set(config.DBMonitoringDialect, "mysql")
	assert.False(t, monitoring.Connect(ctx, props, nil).Enabled(), "connection errors disable monitoring")

	props.Set(config.DBMonitoringDialect, "sqlite")
	props.Set(config.DBMonitoringDatabase, filepath.Join(t.TempDir(), "m.db"))
	sink = monitoring.Connect(ctx, props, nil)
	require.True(t, sink.Enabled())
	require.NoError(t, sink.Close(ctx))
}

func TestNop(t *testing.T) {
	var sink monitoring.Sink = monitoring.Nop{}
	ctx := context.Background()
	require.NoError(t, sink.InsertSession(ctx, monitoring.SessionRecord{}))
	sink.InsertChat(monitoring.ChatRecord{})
	msgs, err := sink.SelectChat(ctx, "a", "s", 0)
	require.NoError(t, err)
	assert.Nil(t, msgs)
}
