package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/agentsmithers/go-mcp-bridge"
	"github.com/agentsmithers/go-mcp-bridge/servers/everything"
)

var errStdinClosed = errors.New("stdin closed")

func rootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "mcp-bridge",
		Short:        "Serve a command registry to MCP clients over SSE",
		SilenceUsage: true,
		Long: `
Serve the demonstration command set, prompts and resources to MCP clients.

Clients open an event stream with GET <prefix>/sse, receive the message endpoint in an
"endpoint" event and POST JSON-RPC requests to it. Responses arrive on the stream.

Every flag can also be set with an MCP_BRIDGE_* environment variable (e.g.
MCP_BRIDGE_LOG_LEVEL=debug) or in the file passed with --config.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger := cfg.logger(cmd.ErrOrStderr())
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, errStdinClosed) {
				return err
			}
			return nil
		},
	}

	cobra.CheckErr(bindFlags(cmd.Flags(), v))
	cmd.AddCommand(toolsCmd(), callCmd())
	return cmd
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := newServer(cfg, logger, mcp.NewMetrics(reg))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if cfg.Stdio {
			return serveStdio(gctx, srv)
		}
		return srv.ListenAndServe(gctx, cfg.Listen)
	})
	if cfg.MetricsListen != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsListen, reg, logger)
		})
	}
	return g.Wait()
}

func newServer(cfg config, logger *slog.Logger, metrics *mcp.Metrics) (*mcp.Server, error) {
	registry := mcp.NewRegistry(mcp.WithRegistryLogger(logger))
	demo := everything.NewServer(registry, everything.WithLogger(logger))
	if err := registry.RegisterSource(demo); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}
	prompts, resources, err := demo.Catalogs()
	if err != nil {
		return nil, err
	}

	return mcp.NewServer(mcp.Info{Name: cfg.ServerName, Version: cfg.ServerVersion}, registry,
		mcp.WithInstructions(cfg.Instructions),
		mcp.WithPathPrefix(cfg.Prefix),
		mcp.WithPrompts(prompts),
		mcp.WithResources(resources),
		mcp.WithMetrics(metrics),
		mcp.WithMaxBodyBytes(cfg.MaxBodyBytes),
		mcp.WithServerLogger(logger),
	), nil
}

// serveStdio serves stdin/stdout until the input ends, then cancels the group so the
// metrics listener stops too.
func serveStdio(ctx context.Context, srv *mcp.Server) error {
	if err := srv.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil {
		return err
	}
	if ctx.Err() == nil {
		return errStdinClosed
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(ln)
	}()
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}
	return nil
}
