// Spiralmind is a self-learning concept daemon.
//
// It keeps a map of concepts to explanations, learns new concepts from
// public encyclopedic sources, links overlapping concepts and answers with a
// short spiral of related knowledge.
//
// Configuration is loaded from ~/.config/spiralmind/config.yaml and
// SPIRALMIND_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Serve the HTTP API
//	spiralmind
//
//	# Serve MCP tools on stdin/stdout
//	spiralmind mcp
//
//	# Override settings
//	SPIRALMIND_SERVER_HTTP_PORT=9292 spiralmind -config /etc/spiralmind/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/config"
	httpserver "github.com/fyrsmithlabs/spiralmind/internal/http"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/spiralmind/config.yaml)")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()

	mode := "serve"
	if len(args) > 0 {
		mode = args[0]
	}

	switch mode {
	case "version":
		printVersion()
		return
	case "serve", "mcp":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", mode)
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spiralmind: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mode == "mcp" {
		err = runMCP(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "spiralmind: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  spiralmind [-config path]          Serve the HTTP API\n")
	fmt.Fprintf(os.Stderr, "  spiralmind [-config path] mcp      Serve MCP tools over stdio\n")
	fmt.Fprintf(os.Stderr, "  spiralmind version                 Show version information\n")
}

func printVersion() {
	fmt.Printf("spiralmind by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run serves the HTTP API until ctx is cancelled, then shuts the server
// down and performs the final store save.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := httpserver.NewServer(httpserver.Options{
		Router:   a.router,
		Store:    a.store,
		Logger:   a.logger,
		Gatherer: a.registry,
		Meter:    a.telemetry.Meter("github.com/fyrsmithlabs/spiralmind/internal/http"),
	}, &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Underlying().Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
