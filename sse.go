package mcp

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ServeHTTP routes requests below the server's path prefix. Paths match
// case-insensitively:
//
//	GET  <prefix>/sse                     open an event stream session
//	POST <prefix>/message?sessionId=<id>  submit a JSON-RPC message for that session
//	GET  <prefix>/discover, <prefix>/mcp/ legacy synchronous command listing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel, ok := strings.CutPrefix(strings.ToLower(r.URL.Path), strings.ToLower(s.prefix))
	if !ok {
		s.notFound(w, r)
		return
	}

	switch rel {
	case "/sse", "/sse/":
		s.only(http.MethodGet, s.HandleSSE()).ServeHTTP(w, r)
	case "/message", "/message/":
		s.only(http.MethodPost, s.HandleMessage()).ServeHTTP(w, r)
	case "/discover", "/discover/", "/mcp", "/mcp/":
		s.only(http.MethodGet, s.HandleDiscover()).ServeHTTP(w, r)
	default:
		s.notFound(w, r)
	}
}

// HandleSSE returns an http.Handler that opens a session, announces its message endpoint
// with an "endpoint" event and holds the stream open until the session closes or the
// client goes away.
func (s *Server) HandleSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")

		sess, err := s.sessions.Open(w, r)
		if err != nil {
			s.logger.Error("failed to open session", slog.String("err", err.Error()))
			status := http.StatusInternalServerError
			if errors.Is(err, ErrSessionClosed) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}

		endpoint := s.prefix + "/message?sessionId=" + sess.ID()
		if err := s.sessions.SendEvent(sess.ID(), "endpoint", endpoint); err != nil {
			// The failed write already closed the session.
			return
		}

		select {
		case <-sess.Done():
		case <-r.Context().Done():
			s.sessions.Close(sess.ID())
		}
	})
}

// HandleMessage returns an http.Handler that accepts a JSON-RPC message for an existing
// session. The request is acknowledged with 202 Accepted before it is processed; the
// response, if any, is delivered on the session's event stream.
func (s *Server) HandleMessage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessID := r.URL.Query().Get("sessionId")
		if !s.sessions.IsValid(sessID) {
			s.logger.Warn("invalid or missing session id", slog.String("sessionID", sessID))
			http.Error(w, "Invalid or missing sessionId.", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
		if err != nil {
			s.logger.Warn("failed to read message body",
				slog.String("sessionID", sessID), slog.String("err", err.Error()))
			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, "failed to read request body", status)
			return
		}

		if !s.track() {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "Accepted")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		go func() {
			defer s.dispatches.Done()

			resp := s.dispatcher.Handle(s.ctx, body)
			if resp == nil {
				return
			}
			if err := s.sessions.Send(sessID, resp); err != nil {
				s.logger.Warn("failed to deliver response",
					slog.String("sessionID", sessID), slog.String("err", err.Error()))
			}
		}()
	})
}

// HandleDiscover returns an http.Handler serving the legacy command listing: every
// command's name with the type names of its parameters.
func (s *Server) HandleDiscover() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cmds := s.registry.List()
		entries := make([]discoverEntry, len(cmds))
		for i, c := range cmds {
			params := make([]string, len(c.Params))
			for j, p := range c.Params {
				params[j] = p.Type.String()
			}
			entries[i] = discoverEntry{Name: c.Name, Parameters: params}
		}

		bs := s.dispatcher.encode(Response{JSONRPC: JSONRPCVersion, Result: entries})
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(bs); err != nil {
			s.logger.Warn("failed to write discovery response", slog.String("err", err.Error()))
		}
	})
}

func (s *Server) only(method string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.NotFound(w, r)
}
