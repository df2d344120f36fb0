package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

func parseDialect(s string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return dialectSQLite, nil
	case "postgres", "postgresql":
		return dialectPostgres, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
}

// rebind turns ? placeholders into $N for postgres.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Config describes the monitoring database.
type Config struct {
	Dialect  string
	Host     string
	Port     int
	Database string // file path for sqlite
	Username string
	Password string
	// DSN overrides the connection fields above.
	DSN string

	Workers         int           // default: 1 for sqlite, 4 for postgres
	QueueSize       int           // default: 1000
	MaxRetries      int           // default: 3
	ShutdownTimeout time.Duration // default: 5s
	Logger          *slog.Logger
}

// ConfigFromProperties reads the db.monitoring.* properties.
func ConfigFromProperties(props *config.Properties) Config {
	return Config{
		Dialect:  props.String(config.DBMonitoringDialect),
		Host:     props.String(config.DBMonitoringHost),
		Port:     props.Int(config.DBMonitoringPort),
		Database: props.String(config.DBMonitoringDatabase),
		Username: props.String(config.DBMonitoringUsername),
		Password: props.String(config.DBMonitoringPassword),
	}
}

func (c Config) dsn(d dialect) string {
	if c.DSN != "" {
		return c.DSN
	}
	if d == dialectSQLite {
		if c.Database == "" {
			return "monitoring.db"
		}
		return c.Database
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	if c.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(c.Port))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     host,
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// DB is a Sink backed by sqlite or postgres.
type DB struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	pool    *writerPool
	timeout time.Duration

	keys sync.Map // agent + "\x00" + session id -> session row id
}

// Open connects to the database, applies the migrations and starts the
// writer pool.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := parseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
		if d == dialectSQLite {
			cfg.Workers = 1
		}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	db, err := openSQL(ctx, d, cfg.dsn(d))
	if err != nil {
		return nil, err
	}
	if err := newMigrator(db, d).Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{
		db:      db,
		dialect: d,
		logger:  cfg.Logger,
		pool:    newWriterPool(cfg.Workers, cfg.QueueSize, cfg.MaxRetries, cfg.Logger),
		timeout: cfg.ShutdownTimeout,
	}, nil
}

func openSQL(ctx context.Context, d dialect, dsn string) (*sql.DB, error) {
	if d == dialectPostgres {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("monitoring: failed to open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("monitoring: failed to ping database: %w", err)
		}
		return db, nil
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("monitoring: failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("monitoring: failed to run %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Enabled is always true for a DB.
func (m *DB) Enabled() bool { return true }

// InsertSession records a session. Inserting the same (agent, session id)
// twice is a no-op.
func (m *DB) InsertSession(ctx context.Context, r SessionRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	_, err := m.db.ExecContext(ctx, m.dialect.rebind(`
		INSERT INTO session (agent_name, session_id, platform_name, "timestamp")
		VALUES (?, ?, ?, ?)
		ON CONFLICT (agent_name, session_id) DO NOTHING`),
		r.Agent, r.SessionID, r.Platform, r.Timestamp)
	if err != nil {
		return fmt.Errorf("monitoring: failed to insert session %s: %w", r.SessionID, err)
	}
	_, err = m.sessionKey(ctx, r.Agent, r.SessionID)
	return err
}

// sessionKey returns the row id of a session.
func (m *DB) sessionKey(ctx context.Context, agent, sessionID string) (int64, error) {
	cacheKey := agent + "\x00" + sessionID
	if id, ok := m.keys.Load(cacheKey); ok {
		return id.(int64), nil
	}
	var id int64
	err := m.db.QueryRowContext(ctx, m.dialect.rebind(
		`SELECT id FROM session WHERE agent_name = ? AND session_id = ?`), agent, sessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return 0, fmt.Errorf("monitoring: failed to select session %s: %w", sessionID, err)
	}
	m.keys.Store(cacheKey, id)
	return id, nil
}

// InsertIntentPrediction queues an intent prediction and its parameters.
func (m *DB) InsertIntentPrediction(r PredictionRecord) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	m.pool.enqueue(&writeJob{kind: TableIntentPrediction, session: r.SessionID, run: func(ctx context.Context) error {
		return m.insertIntentPrediction(ctx, r)
	}})
}

func (m *DB) insertIntentPrediction(ctx context.Context, r PredictionRecord) error {
	sessionKey, err := m.sessionKey(ctx, r.Agent, r.SessionID)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("monitoring: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var predictionID int64
	err = tx.QueryRowContext(ctx, m.dialect.rebind(`
		INSERT INTO intent_prediction (session_id, message, "timestamp", intent_classifier, intent, score)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		sessionKey, r.Message, r.Timestamp, r.Classifier, r.Intent, r.Score).Scan(&predictionID)
	if err != nil {
		return fmt.Errorf("monitoring: failed to insert intent prediction: %w", err)
	}

	insertParam := m.dialect.rebind(`INSERT INTO parameter (intent_prediction_id, name, value, info) VALUES (?, ?, ?, ?)`)
	for _, p := range r.Parameters {
		info, err := json.Marshal(p.Info)
		if err != nil {
			return fmt.Errorf("monitoring: failed to encode info of parameter %s: %w", p.Name, err)
		}
		if _, err := tx.ExecContext(ctx, insertParam, predictionID, p.Name, parameterValue(p.Value), string(info)); err != nil {
			return fmt.Errorf("monitoring: failed to insert parameter %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

func parameterValue(v any) sql.NullString {
	switch x := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		return sql.NullString{String: x, Valid: true}
	}
	return sql.NullString{String: fmt.Sprint(v), Valid: true}
}

// InsertTransition queues a transition.
func (m *DB) InsertTransition(r TransitionRecord) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	m.pool.enqueue(&writeJob{kind: TableTransition, session: r.SessionID, run: func(ctx context.Context) error {
		key, err := m.sessionKey(ctx, r.Agent, r.SessionID)
		if err != nil {
			return err
		}
		_, err = m.db.ExecContext(ctx, m.dialect.rebind(`
			INSERT INTO transition (session_id, source_state, dest_state, event, info, "timestamp")
			VALUES (?, ?, ?, ?, ?, ?)`),
			key, r.Source, r.Dest, r.Event, r.Info, r.Timestamp)
		if err != nil {
			return fmt.Errorf("monitoring: failed to insert transition: %w", err)
		}
		return nil
	}})
}

// InsertChat queues a chat message.
func (m *DB) InsertChat(r ChatRecord) {
	msg := r.Message
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.pool.enqueue(&writeJob{kind: TableChat, session: r.SessionID, run: func(ctx context.Context) error {
		key, err := m.sessionKey(ctx, r.Agent, r.SessionID)
		if err != nil {
			return err
		}
		_, err = m.db.ExecContext(ctx, m.dialect.rebind(`
			INSERT INTO chat (session_id, type, content, is_user, "timestamp")
			VALUES (?, ?, ?, ?, ?)`),
			key, string(msg.Type), msg.Text(), msg.IsUser, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("monitoring: failed to insert chat message: %w", err)
		}
		return nil
	}})
}

// SelectChat returns the last n chat messages of a session, oldest first.
// Contents of non text messages are decoded back from JSON when possible.
func (m *DB) SelectChat(ctx context.Context, agent, sessionID string, n int) ([]types.Message, error) {
	key, err := m.sessionKey(ctx, agent, sessionID)
	if err != nil {
		return nil, err
	}
	query := `SELECT type, content, is_user, "timestamp" FROM chat WHERE session_id = ? ORDER BY "timestamp" DESC, id DESC`
	args := []any{key}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}
	rows, err := m.db.QueryContext(ctx, m.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("monitoring: failed to select chat: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []types.Message
	for rows.Next() {
		var (
			msg     types.Message
			kind    string
			content string
		)
		if err := rows.Scan(&kind, &content, &msg.IsUser, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("monitoring: failed to scan chat message: %w", err)
		}
		msg.Type = types.MessageType(kind)
		msg.Content = decodeContent(msg.Type, content)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func decodeContent(t types.MessageType, content string) any {
	switch t {
	case types.MessageStr, types.MessageMarkdown, types.MessageHTML:
		return content
	}
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return content
	}
	return v
}

// TransitionCount returns the number of transitions recorded for a session,
// or for every session of the agent when sessionID is empty.
func (m *DB) TransitionCount(ctx context.Context, agent, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM transition t JOIN session s ON s.id = t.session_id WHERE s.agent_name = ?`
	args := []any{agent}
	if sessionID != "" {
		query += ` AND s.session_id = ?`
		args = append(args, sessionID)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, m.dialect.rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("monitoring: failed to count transitions: %w", err)
	}
	return n, nil
}

// Rows returns the columns and the last limit rows of a monitoring table as
// strings, every row when limit <= 0.
func (m *DB) Rows(ctx context.Context, table string, limit int) ([]string, [][]string, error) {
	known := false
	for _, t := range Tables {
		known = known || t == table
	}
	if !known {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	query := fmt.Sprintf(`SELECT * FROM (SELECT * FROM %s ORDER BY id DESC`, table)
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	query += `) recent ORDER BY id`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("monitoring: failed to select %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("monitoring: failed to scan %s: %w", table, err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		out = append(out, row)
	}
	return columns, out, rows.Err()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// Flush waits until every queued write is done.
func (m *DB) Flush(ctx context.Context) error {
	return m.pool.flush(ctx)
}

// Reset drops the monitoring tables and creates them again.
func (m *DB) Reset(ctx context.Context) error {
	if err := m.Flush(ctx); err != nil {
		return err
	}
	mig := newMigrator(m.db, m.dialect)
	if err := mig.Down(ctx); err != nil {
		return err
	}
	m.keys.Range(func(k, _ any) bool {
		m.keys.Delete(k)
		return true
	})
	return mig.Up(ctx)
}

// Close drains the write queue and closes the database.
func (m *DB) Close(ctx context.Context) error {
	err := m.pool.stop(ctx, m.timeout)
	if cerr := m.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
