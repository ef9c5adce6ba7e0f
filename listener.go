package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ListenAndServe binds addr and serves until ctx ends. A bind failure is returned
// immediately and nothing is served.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error("failed to bind listener", slog.String("addr", addr), slog.String("err", err.Error()))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down gracefully within the
// configured shutdown timeout. Every connection is served on its own goroutine, so a
// long-lived event stream never delays acceptance of the next connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(ln)
	}()
	s.logger.Info("listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("sse", s.prefix+"/sse"),
		slog.String("message", s.prefix+"/message"))

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("listener stopped", slog.String("err", err.Error()))
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	// The HTTP server waits for event-stream handlers, which only return once their
	// sessions are closed by s.Shutdown.
	httpDone := make(chan error, 1)
	go func() {
		httpDone <- srv.Shutdown(shutdownCtx)
	}()

	err := s.Shutdown(shutdownCtx)
	if hErr := <-httpDone; hErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to shutdown http server: %w", hErr))
	}
	return err
}
