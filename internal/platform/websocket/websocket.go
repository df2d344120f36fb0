// Package websocket serves an agent over WebSocket connections. Each
// connection is one session; frames are JSON {action, message} payloads.
package websocket

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	ws "nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Name is the platform name recorded with its sessions.
const Name = "websocket"

const (
	sendQueueSize = 256
	writeTimeout  = 10 * time.Second
)

// Default inbound frame rate per connection.
const (
	DefaultRate  = rate.Limit(20)
	DefaultBurst = 40
)

// RateLimitMessage is sent to a client instead of handling a frame over its
// rate limit.
const RateLimitMessage = "Too many messages, please slow down."

// ErrConnectionNotFound is returned when sending to a session without an open
// connection.
var ErrConnectionNotFound = errors.New("websocket: no connection for session")

// ErrSendQueueFull is returned when a connection does not drain its replies.
var ErrSendQueueFull = errors.New("websocket: send queue full")

// Platform is the WebSocket server.
type Platform struct {
	agent *core.Agent
	log   *slog.Logger

	host    string
	port    int
	maxSize int64

	limit          rate.Limit
	burst          int
	originPatterns []string

	mu       sync.RWMutex
	clients  map[string]*client
	server   *http.Server
	listener net.Listener
	ready    chan struct{}
	readyOne sync.Once
}

// Option configures a Platform.
type Option func(*Platform)

// WithRateLimit sets the inbound frame rate allowed per connection.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(p *Platform) {
		p.limit = limit
		p.burst = burst
	}
}

// WithOriginPatterns restricts the accepted Origin headers. Any origin is
// accepted when no pattern is given.
func WithOriginPatterns(patterns ...string) Option {
	return func(p *Platform) { p.originPatterns = patterns }
}

// New creates an uninitialized platform.
func New(opts ...Option) *Platform {
	p := &Platform{
		log:     slog.Default(),
		limit:   DefaultRate,
		burst:   DefaultBurst,
		clients: make(map[string]*client),
		ready:   make(chan struct{}),
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

// Initialize reads the websocket.* properties of a.
func (p *Platform) Initialize(a *core.Agent) error {
	props := a.Properties()
	p.agent = a
	p.log = a.Logger().With(slog.String("platform", Name))
	p.host = props.String(config.WebSocketHost)
	p.port = props.Int(config.WebSocketPort)
	p.maxSize = int64(props.Int(config.WebSocketMaxSize))
	if p.port < 0 || p.port > 65535 {
		return fmt.Errorf("websocket: invalid port %d", p.port)
	}
	return nil
}

// Start listens on host:port and serves connections until ctx is cancelled
// or Stop is called.
func (p *Platform) Start(ctx context.Context) error {
	if p.agent == nil {
		return errors.New("websocket: platform not initialized")
	}
	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("websocket: failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	p.mu.Lock()
	p.server = srv
	p.listener = ln
	p.mu.Unlock()
	p.readyOne.Do(func() { close(p.ready) })
	p.log.Info("websocket server listening", slog.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket: server failed: %w", err)
	}
	return nil
}

// Ready is closed once Start is listening.
func (p *Platform) Ready() <-chan struct{} { return p.ready }

// Addr returns the listening address, or nil before Start.
func (p *Platform) Addr() net.Addr {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop shuts the server down and closes the open connections.
func (p *Platform) Stop(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	clients := make([]*client, 0, len(p.clients))
	for _, c := range p.clients {
		clients = append(clients, c)
	}
	p.mu.Unlock()

	var err error
	if srv != nil {
		if err = srv.Shutdown(ctx); errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	for _, c := range clients {
		c.closeConn(ws.StatusGoingAway, "agent stopped")
	}
	p.log.Info("websocket server stopped")
	return err
}

// Send enqueues a payload for the connection of sessionID.
func (p *Platform) Send(_ context.Context, sessionID string, payload platform.Payload) error {
	p.mu.RLock()
	c, ok := p.clients[sessionID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, sessionID)
	}
	data, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("websocket: failed to encode %s payload: %w", payload.Action, err)
	}
	return c.enqueue(data)
}

// Reply sends an agent message to the user of s.
func (p *Platform) Reply(ctx context.Context, s *core.Session, msg types.Message) error {
	if err := core.CheckPlatform(p, s); err != nil {
		return err
	}
	payload, err := platform.FromMessage(msg)
	if err != nil {
		return err
	}
	return p.Send(ctx, s.ID(), payload)
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (p *Platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &ws.AcceptOptions{OriginPatterns: p.originPatterns} //nolint:staticcheck
	if len(p.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := ws.Accept(w, r, opts) //nolint:staticcheck
	if err != nil {
		p.log.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}
	if p.maxSize > 0 {
		conn.SetReadLimit(p.maxSize)
	}

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		limiter: rate.NewLimiter(p.limit, p.burst),
	}
	p.register(c)
	defer p.unregister(c)
	go c.writePump(p.log)

	ctx := r.Context()
	if _, err := p.agent.GetOrCreateSession(ctx, c.id, p); err != nil {
		p.log.Error("failed to create session", slog.String("session", c.id), slog.Any("error", err))
		c.closeConn(ws.StatusInternalError, "session unavailable")
		return
	}
	p.readLoop(ctx, c)
}

func (p *Platform) register(c *client) {
	p.mu.Lock()
	p.clients[c.id] = c
	count := len(p.clients)
	p.mu.Unlock()
	p.log.Info("websocket client connected", slog.String("session", c.id), slog.Int("total", count))
}

func (p *Platform) unregister(c *client) {
	p.mu.Lock()
	delete(p.clients, c.id)
	count := len(p.clients)
	p.mu.Unlock()
	c.closeSend()
	if err := p.agent.DeleteSession(c.id); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		p.log.Error("failed to delete session", slog.String("session", c.id), slog.Any("error", err))
	}
	p.log.Info("websocket client disconnected", slog.String("session", c.id), slog.Int("total", count))
}

// readLoop handles the frames of c in arrival order.
func (p *Platform) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := ws.CloseStatus(err); status != ws.StatusNormalClosure && status != ws.StatusGoingAway && ctx.Err() == nil { //nolint:staticcheck
				p.log.Warn("websocket read failed", slog.String("session", c.id), slog.Any("error", err))
			}
			return
		}
		if !c.limiter.Allow() {
			p.log.Warn("websocket frame dropped by rate limit", slog.String("session", c.id))
			if err := p.Send(ctx, c.id, platform.Payload{Action: platform.AgentReplyStr, Message: RateLimitMessage}); err != nil {
				p.log.Error("failed to notify rate limit", slog.String("session", c.id), slog.Any("error", err))
			}
			continue
		}
		if err := p.handle(ctx, c.id, data); err != nil {
			p.log.Error("failed to handle websocket payload", slog.String("session", c.id), slog.Any("error", err))
		}
	}
}

func (p *Platform) handle(ctx context.Context, sessionID string, data []byte) error {
	payload, err := platform.Decode(data)
	if err != nil {
		return err
	}
	switch payload.Action {
	case platform.UserMessage:
		return p.agent.ReceiveMessage(ctx, sessionID, payload.Text())
	case platform.UserVoice:
		audio, err := base64.StdEncoding.DecodeString(payload.Text())
		if err != nil {
			return fmt.Errorf("websocket: invalid voice payload: %w", err)
		}
		return p.agent.ReceiveVoice(ctx, sessionID, audio)
	case platform.UserFile:
		f, err := payload.File()
		if err != nil {
			return err
		}
		return p.agent.ReceiveFile(ctx, sessionID, f)
	case platform.Reset:
		_, err := p.agent.Reset(ctx, sessionID)
		return err
	default:
		return fmt.Errorf("websocket: unexpected inbound action %q", payload.Action)
	}
}

// client is one connection and its write queue.
type client struct {
	id      string
	conn    *ws.Conn //nolint:staticcheck
	limiter *rate.Limiter

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (c *client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, c.id)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrSendQueueFull, c.id)
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) closeConn(code ws.StatusCode, reason string) { //nolint:staticcheck
	_ = c.conn.Close(code, reason)
}

// writePump writes queued payloads until the queue is closed.
func (c *client) writePump(log *slog.Logger) {
	defer c.closeConn(ws.StatusNormalClosure, "") //nolint:staticcheck
	for data := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, ws.MessageText, data) //nolint:staticcheck
		cancel()
		if err != nil {
			log.Error("websocket write failed", slog.String("session", c.id), slog.Any("error", err))
			return
		}
	}
}

var _ core.Platform = (*Platform)(nil)
