package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trading-agent/internal/config"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultRunTimeout     = 2 * time.Minute
)

// slowTools download market data and get RunTimeout instead of RequestTimeout.
var slowTools = map[string]bool{"analyze_now": true}

type ServerConfig struct {
	Symbol         string
	Strategy       config.StrategyConfig
	RequestTimeout time.Duration
	RunTimeout     time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaultRunTimeout
	}
	return c
}

// NewServer exposes reports and stored candles as MCP tools and resources.
// candles may be nil when no database is configured.
func NewServer(tracer trace.Tracer, reports ReportReader, candles CandleReader, cfg ServerConfig) *sdkmcp.Server {
	cfg = cfg.withDefaults()

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "trading-agent-mcp",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Read FX analysis reports for " + cfg.Symbol + ", trigger a run and inspect stored candles.",
		Logger:       slog.Default(),
	})

	srv.AddReceivingMiddleware(deadline(cfg.RequestTimeout, cfg.RunTimeout))
	srv.AddReceivingMiddleware(observe(tracer))

	registerTools(srv, cfg.Symbol, reports, candles)
	registerResources(srv, cfg.Symbol, cfg.Strategy, reports, candles)
	return srv
}

// NewHTTPTransportHandler serves the streamable HTTP transport behind the
// bearer token, rate and body guards.
func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return newGuard(base, cfg)
}

func deadline(request, run time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			timeout := request
			if slowTools[toolName(req)] {
				timeout = run
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

// observe wraps each request in a span and logs failures. A nil tracer only
// logs.
func observe(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			start := time.Now()
			tool := toolName(req)

			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, spanName(method, req))
				span.SetAttributes(attribute.String("mcp.method", method))
				if tool != "" {
					span.SetAttributes(attribute.String("mcp.tool", tool))
				}
				if uri := resourceURI(req); uri != "" {
					span.SetAttributes(attribute.String("mcp.resource.uri", uri))
				}
				defer span.End()
			}

			result, err := next(ctx, method, req)
			if err != nil {
				if span != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				}
				log.Warn().Err(err).Str("method", method).Str("tool", tool).
					Dur("took", time.Since(start)).Msg("mcp request failed")
				return result, err
			}
			if tool != "" {
				log.Debug().Str("tool", tool).Dur("took", time.Since(start)).Msg("mcp tool call")
			}
			return result, nil
		}
	}
}

func toolName(req sdkmcp.Request) string {
	if call, ok := req.(*sdkmcp.CallToolRequest); ok && call.Params != nil {
		return strings.TrimSpace(call.Params.Name)
	}
	return ""
}

func resourceURI(req sdkmcp.Request) string {
	if read, ok := req.(*sdkmcp.ReadResourceRequest); ok && read.Params != nil {
		return strings.TrimSpace(read.Params.URI)
	}
	return ""
}

func spanName(method string, req sdkmcp.Request) string {
	if name := toolName(req); name != "" {
		return "mcp.tool." + name
	}
	return "mcp." + strings.ReplaceAll(method, "/", ".")
}
