package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"trading-agent/internal/config"
	"trading-agent/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	uriTimeframes  = "agent://timeframes"
	uriStrategy    = "agent://strategy"
	uriLatest      = "reports://latest"
	uriLatestChart = "reports://latest/chart"
)

var errAgentUnavailable = errors.New("agent unavailable")

type staticResource struct {
	uri, name, desc, mime string
	read                  func(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
}

func registerResources(server *mcp.Server, symbol string, strategy config.StrategyConfig, reports ReportReader, candles CandleReader) {
	latest := func(uri string) (*snapshotRef, error) {
		if reports == nil {
			return nil, errAgentUnavailable
		}
		snap, ok := reports.Latest()
		if !ok || snap.Report == nil {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return &snapshotRef{chart: snap.Chart, output: newReportOutput(snap)}, nil
	}

	static := []staticResource{
		{uriTimeframes, "timeframes", "Candle timeframes analysed by the agent", "application/json",
			func(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
				return jsonResource(uri, domain.SupportedTimeframes)
			}},
		{uriStrategy, "strategy", "Indicator parameters and rule thresholds of the active strategy", "application/json",
			func(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
				return jsonResource(uri, strategy)
			}},
		{uriLatest, "report-latest", "Most recent analysis report for " + symbol, "application/json",
			func(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
				ref, err := latest(uri)
				if err != nil {
					return nil, err
				}
				return jsonResource(uri, ref.output)
			}},
		{uriLatestChart, "report-latest-chart", "M15 chart of the most recent report", "image/png",
			func(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
				ref, err := latest(uri)
				if err != nil {
					return nil, err
				}
				if len(ref.chart) == 0 {
					return nil, mcp.ResourceNotFoundError(uri)
				}
				return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
					URI: uri, MIMEType: "image/png", Blob: ref.chart,
				}}}, nil
			}},
	}
	for _, r := range static {
		read := r.read
		server.AddResource(&mcp.Resource{URI: r.uri, Name: r.name, Description: r.desc, MIMEType: r.mime},
			func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				return read(ctx, req.Params.URI)
			})
	}

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "candles://{timeframe}{?limit}",
		Name:        "candles-by-timeframe",
		Description: "Stored OHLC candles of " + symbol + "; optional limit query param",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if candles == nil {
			return nil, errors.New("candle store unavailable")
		}
		tf, limit, err := parseCandlesURI(req.Params.URI)
		if err != nil {
			return nil, err
		}
		list, err := candles.GetCandles(ctx, symbol, tf, limit)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, candlesListOutput{Symbol: symbol, Timeframe: string(tf), Candles: list})
	})
}

type snapshotRef struct {
	chart  []byte
	output reportOutput
}

// parseCandlesURI reads candles://<timeframe>?limit=<n>.
func parseCandlesURI(raw string) (domain.Timeframe, int, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "candles" {
		return "", 0, mcp.ResourceNotFoundError(raw)
	}
	tf, err := normalizeTimeframe(u.Host)
	if err != nil {
		return "", 0, err
	}
	limit := defaultCandleLimit
	if v := u.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", 0, fmt.Errorf("invalid limit: %s", v)
		}
		limit = normalizeCandleLimit(n)
	}
	return tf, limit, nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
		URI: uri, MIMEType: "application/json", Text: string(body),
	}}}, nil
}
