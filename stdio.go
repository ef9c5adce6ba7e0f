package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ServeStdio serves a single session of newline-delimited JSON-RPC messages read from r,
// writing one response per line to w. This is the framing MCP clients use for servers
// they spawn as child processes.
//
// Messages are dispatched concurrently, so responses may be written out of order. At the
// end of r, ServeStdio waits until every in-flight request is answered and returns nil.
// When ctx ends it returns nil after in-flight requests, which see the cancellation, finish.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	logger := s.logger.With(slog.String("transport", "stdio"))

	var writeMu sync.Mutex
	write := func(resp []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := w.Write(append(resp, '\n')); err != nil {
			logger.Error("failed to write response", slog.String("err", err.Error()))
		}
	}

	lines := make(chan []byte)
	readErrs := make(chan error, 1)

	// The reader runs on its own goroutine so a blocked Read never delays shutdown.
	go func() {
		// bufio.Reader instead of bufio.Scanner to avoid max token size errors.
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErrs <- err
				return
			}
		}
	}()

	dispatchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	logger.Info("serving stdio session")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErrs:
			if errors.Is(err, io.EOF) {
				return nil
			}
			logger.Error("failed to read message", slog.String("err", err.Error()))
			return fmt.Errorf("failed to read message: %w", err)
		case line := <-lines:
			wg.Add(1)
			go func() {
				defer wg.Done()
				if resp := s.dispatcher.Handle(dispatchCtx, line); resp != nil {
					write(resp)
				}
			}()
		}
	}
}
