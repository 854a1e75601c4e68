package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tale"
	"github.com/aretw0/tale/internal/config"
	"github.com/aretw0/tale/pkg/adapters/mcp"
	"github.com/aretw0/tale/pkg/observability"
)

// RunMCP serves the engine as an MCP server over stdio or SSE.
// With stdio, logger must not write to Stdout.
func RunMCP(ctx context.Context, cfg config.Config, logger *slog.Logger, transport, addr string) error {
	engine, err := NewEngine(cfg, logger, observability.LogSink(logger))
	if err != nil {
		return err
	}
	defer engine.Close()

	go func() {
		_ = engine.Registry().Run(ctx, reapInterval)
	}()

	srv := mcp.NewServer(engine.Registry(), engine.Graph(),
		mcp.WithLogger(logger),
		mcp.WithVersion(tale.Version),
	)

	switch transport {
	case "stdio":
		logger.Info("Starting Tale MCP Server (Stdio)...")
		return srv.ServeStdio()
	case "sse":
		logger.Info("Starting Tale MCP Server (SSE)", "addr", addr)
		start := time.Now()
		err := srv.ServeSSE(ctx, addr)
		logger.Info("MCP Server stopped", "uptime", time.Since(start).Round(time.Second))
		return err
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
