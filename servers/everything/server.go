package everything

import (
	"log/slog"
	"os"

	"github.com/agentsmithers/go-mcp-bridge"
)

// Server is a demonstration command set that exercises every parameter kind, prompt
// feature and catalog the bridge supports. It is primarily meant for testing clients
// against a running bridge.
//
// Server implements mcp.CommandSource. Help describes the registry it was created with,
// so the same registry should be the one the commands are registered into:
//
//	reg := mcp.NewRegistry()
//	srv := everything.NewServer(reg)
//	if err := reg.RegisterSource(srv); err != nil { ... }
type Server struct {
	registry *mcp.Registry
	environ  func() []string
	logger   *slog.Logger
}

// Option represents the options for the Server.
type Option func(*Server)

// NewServer creates a demonstration server describing registry.
func NewServer(registry *mcp.Registry, options ...Option) *Server {
	s := &Server{
		registry: registry,
		environ:  os.Environ,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("package", "everything"))
	return s
}

// WithLogger sets the logger the commands report progress to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithEnviron replaces the environment source of PrintEnv.
func WithEnviron(environ func() []string) Option {
	return func(s *Server) {
		s.environ = environ
	}
}

// Catalogs returns the prompt set and resource catalog of the demonstration server.
func (s *Server) Catalogs() (*mcp.PromptSet, *mcp.ResourceCatalog, error) {
	resources, err := s.Resources()
	if err != nil {
		return nil, nil, err
	}
	return s.Prompts(), resources, nil
}
