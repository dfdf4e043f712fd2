package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	mcpserver "trading-agent/internal/mcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

type mcpOptions struct {
	transport string
	timeout   time.Duration
}

func newMCPCmd() *cobra.Command {
	var opts mcpOptions
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve reports and candles over the Model Context Protocol",
		Long: `Expose the agent's reports, stored candles and on-demand analysis as MCP
tools and resources. The http transport requires MCP_AUTH_TOKEN.

Examples:
  agent mcp
  agent mcp --transport http`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (default 5s)")
	return cmd
}

func runMCP(cmd *cobra.Command, opts mcpOptions) error {
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	transport := strings.ToLower(strings.TrimSpace(opts.transport))
	if transport != "" && transport != "stdio" && transport != "http" {
		return fmt.Errorf("unsupported transport: %s", opts.transport)
	}
	if transport == "http" && cfg.MCPAuthToken == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required for the http transport")
	}

	a, err := newAppFunc(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcpserver.NewServer(a.tracer, a.agent, a.candles, mcpserver.ServerConfig{
		Symbol:         cfg.Pair,
		Strategy:       a.strategy,
		RequestTimeout: opts.timeout,
	})

	if transport == "http" {
		return runMCPHTTP(ctx, cancel, a, server)
	}
	return runStdioFunc(ctx, server)
}

func runMCPHTTP(ctx context.Context, cancel context.CancelFunc, a *app, server *sdkmcp.Server) error {
	handler := mcpserver.NewHTTPTransportHandler(server, mcpserver.HTTPHandlerConfig{
		AuthToken:       a.cfg.MCPAuthToken,
		RateLimitPerMin: a.cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})
	srv := &http.Server{Addr: a.cfg.MCPHTTPAddr, Handler: handler}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("mcp http server failed")
			cancel()
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("mcp http server listening")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(ctx, quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
