package mcp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tmaxmax/go-sse"
)

// SessionManager owns the live SSE channels, keyed by session identifier. Frames written
// to one channel never interleave; frames for different channels are written independently.
type SessionManager struct {
	mu       sync.Mutex
	channels map[string]*sseChannel
	closed   bool

	newID   func() (string, error)
	metrics *Metrics
	logger  *slog.Logger
}

// Session is the handle returned by Open. The SSE handler holds the HTTP response open
// until Done is closed.
type Session struct {
	id   string
	done <-chan struct{}
}

// SessionManagerOption represents the options for the SessionManager.
type SessionManagerOption func(*SessionManager)

type sseChannel struct {
	mu     sync.Mutex
	sess   *sse.Session
	closed bool
	done   chan struct{}
}

var (
	// ErrSessionNotFound is returned when writing to an identifier with no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned when writing to a session that is being torn down.
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionCollision is returned by Open when a freshly generated identifier is
	// already in use.
	ErrSessionCollision = errors.New("session id collision")
)

// NewSessionManager creates an empty session manager.
func NewSessionManager(options ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		channels: make(map[string]*sseChannel),
		newID:    newSessionID,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("package", "go-mcp-bridge"), slog.String("component", "sessions"))
	return m
}

// WithSessionLogger sets the logger of the session manager.
func WithSessionLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

// WithSessionMetrics sets the metrics the session manager reports to.
func WithSessionMetrics(metrics *Metrics) SessionManagerOption {
	return func(m *SessionManager) {
		m.metrics = metrics
	}
}

// WithSessionIDGenerator replaces the random identifier generator.
func WithSessionIDGenerator(gen func() (string, error)) SessionManagerOption {
	return func(m *SessionManager) {
		m.newID = gen
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed once the session has been closed for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

// Open upgrades the response to an event stream and registers a new session for it.
func (m *SessionManager) Open(w http.ResponseWriter, r *http.Request) (*Session, error) {
	id, err := m.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	m.mu.Lock()
	if _, ok := m.channels[id]; ok {
		m.mu.Unlock()
		m.logger.Warn("session id collision, rejecting connection", slog.String("sessionID", id))
		return nil, fmt.Errorf("%w: %s", ErrSessionCollision, id)
	}
	m.mu.Unlock()

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade session: %w", err)
	}

	ch := &sseChannel{
		sess: sess,
		done: make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if _, ok := m.channels[id]; ok {
		m.mu.Unlock()
		m.logger.Warn("session id collision, rejecting connection", slog.String("sessionID", id))
		return nil, fmt.Errorf("%w: %s", ErrSessionCollision, id)
	}
	m.channels[id] = ch
	m.mu.Unlock()

	m.metrics.sessionOpened()
	m.logger.Info("session opened", slog.String("sessionID", id))

	return &Session{id: id, done: ch.done}, nil
}

// Send writes one data frame carrying payload to the session. A failed write closes
// the session.
func (m *SessionManager) Send(id string, payload []byte) error {
	msg := &sse.Message{}
	msg.AppendData(string(payload))
	return m.write(id, msg)
}

// SendEvent writes one frame with an explicit event type to the session.
func (m *SessionManager) SendEvent(id, event, data string) error {
	msg := &sse.Message{
		Type: sse.Type(event),
	}
	msg.AppendData(data)
	return m.write(id, msg)
}

func (m *SessionManager) write(id string, msg *sse.Message) error {
	m.mu.Lock()
	ch, ok := m.channels[id]
	m.mu.Unlock()
	if !ok {
		m.metrics.sendFailed()
		m.logger.Warn("failed to send frame", slog.String("sessionID", id), slog.String("err", ErrSessionNotFound.Error()))
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if err := ch.write(msg); err != nil {
		m.metrics.sendFailed()
		m.logger.Error("failed to send frame, closing session",
			slog.String("sessionID", id), slog.String("err", err.Error()))
		m.Close(id)
		return err
	}
	return nil
}

func (c *sseChannel) write(msg *sse.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	if err := c.sess.Send(msg); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := c.sess.Flush(); err != nil {
		return fmt.Errorf("failed to flush frame: %w", err)
	}
	return nil
}

// Close removes the session and releases its channel. Closing an unknown or already
// closed session is a no-op.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	ch, ok := m.channels[id]
	delete(m.channels, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	if !ch.closed {
		ch.closed = true
		close(ch.done)
	}
	ch.mu.Unlock()

	m.metrics.sessionClosed()
	m.logger.Info("session closed", slog.String("sessionID", id))
}

// CloseAll closes every live session. Open fails with ErrSessionClosed afterwards.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// IsValid reports whether id names a live session.
func (m *SessionManager) IsValid(id string) bool {
	if id == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[id]
	return ok
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// newSessionID returns 128 random bits, URL-safe base64 encoded without padding.
func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
