package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/spiralmind/internal/config"
	"github.com/fyrsmithlabs/spiralmind/internal/mcp"
)

// runMCP serves the MCP tools on stdio. Logs go to stderr since stdout
// carries the protocol.
func runMCP(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "spiralmind",
		Version: version,
		Logger:  a.logger.Underlying().Named("mcp"),
		Meter:   a.telemetry.Meter("github.com/fyrsmithlabs/spiralmind/internal/mcp"),
	}, a.store, a.router)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
