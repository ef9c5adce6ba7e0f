package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ServerOption represents the options for the server.
type ServerOption func(*Server)

// Server exposes the commands of a Registry to remote callers over the SSE + POST
// transport. It owns the session manager and dispatcher and implements http.Handler.
//
// Instances should be created using NewServer and shut down with Shutdown, or served with
// Serve / ListenAndServe which shut down when their context ends.
type Server struct {
	info         Info
	instructions string
	prefix       string
	maxBodyBytes int64

	shutdownTimeout time.Duration

	registry   *Registry
	prompts    PromptProvider
	resources  ResourceProvider
	sessions   *SessionManager
	dispatcher *Dispatcher

	sessionIDGen func() (string, error)
	metrics      *Metrics
	logger       *slog.Logger

	// ctx scopes request dispatch; it outlives the POST that carried the request.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closing    bool
	dispatches sync.WaitGroup
}

var (
	defaultMaxBodyBytes    int64 = 10 << 20
	defaultShutdownTimeout       = 10 * time.Second
)

// NewServer creates a server announcing info and exposing the commands of registry.
func NewServer(info Info, registry *Registry, options ...ServerOption) *Server {
	s := &Server{
		info:            info,
		registry:        registry,
		maxBodyBytes:    defaultMaxBodyBytes,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.registry == nil {
		s.registry = NewRegistry(WithRegistryLogger(s.logger))
	}
	if s.prompts == nil {
		s.prompts = NewPromptSet()
	}
	if s.resources == nil {
		s.resources = NewResourceCatalog()
	}

	sessOpts := []SessionManagerOption{
		WithSessionLogger(s.logger),
		WithSessionMetrics(s.metrics),
	}
	if s.sessionIDGen != nil {
		sessOpts = append(sessOpts, WithSessionIDGenerator(s.sessionIDGen))
	}
	s.sessions = NewSessionManager(sessOpts...)

	s.dispatcher = NewDispatcher(DispatcherConfig{
		Info:         s.info,
		Instructions: s.instructions,
		Registry:     s.registry,
		Prompts:      s.prompts,
		Resources:    s.resources,
		Metrics:      s.metrics,
		Logger:       s.logger,
	})

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.logger = s.logger.With(slog.String("package", "go-mcp-bridge"), slog.String("component", "server"))
	return s
}

// WithInstructions returns a ServerOption that configures the server instructions.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithPathPrefix returns a ServerOption that mounts every endpoint below prefix,
// e.g. "/mcp" serves "/mcp/sse" and "/mcp/message".
func WithPathPrefix(prefix string) ServerOption {
	return func(s *Server) {
		prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		s.prefix = prefix
	}
}

// WithPrompts returns a ServerOption that configures the prompt templates, usually a *PromptSet.
func WithPrompts(prompts PromptProvider) ServerOption {
	return func(s *Server) {
		s.prompts = prompts
	}
}

// WithResources returns a ServerOption that configures the resource descriptors, usually a
// *ResourceCatalog.
func WithResources(resources ResourceProvider) ServerOption {
	return func(s *Server) {
		s.resources = resources
	}
}

// WithMetrics returns a ServerOption that configures the metrics sink.
func WithMetrics(metrics *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithMaxBodyBytes returns a ServerOption that limits the size of POSTed messages.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithShutdownTimeout returns a ServerOption that bounds the graceful shutdown performed
// by Serve when its context ends.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithServerSessionIDGenerator returns a ServerOption that replaces the random session
// identifier generator.
func WithServerSessionIDGenerator(gen func() (string, error)) ServerOption {
	return func(s *Server) {
		s.sessionIDGen = gen
	}
}

// WithServerLogger returns a ServerOption that configures the logger of every component.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Registry returns the command registry served by s.
func (s *Server) Registry() *Registry { return s.registry }

// Sessions returns the session manager of s.
func (s *Server) Sessions() *SessionManager { return s.sessions }

// Dispatcher returns the dispatcher of s.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Shutdown stops accepting requests, waits for in-flight dispatches to deliver their
// responses or for ctx to end, and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.dispatches.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("failed to wait for in-flight requests: %w", ctx.Err())
	}

	s.cancel()
	s.sessions.CloseAll()
	s.logger.Info("server shut down")
	return err
}

// track registers one dispatch goroutine, or reports false once shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.dispatches.Add(1)
	return true
}
