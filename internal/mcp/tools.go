package mcp

import (
	"context"
	"fmt"

	"trading-agent/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, symbol string, reports ReportReader, candles CandleReader) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "report_latest",
		Description: "Get the most recent analysis report for the configured pair",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ reportLatestInput) (*mcp.CallToolResult, reportOutput, error) {
		if reports == nil {
			return nil, reportOutput{}, errAgentUnavailable
		}
		snap, ok := reports.Latest()
		if !ok || snap.Report == nil {
			return nil, reportOutput{}, fmt.Errorf("no report yet")
		}
		return nil, newReportOutput(snap), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "report_history",
		Description: "List stored analysis reports, newest first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in reportHistoryInput) (*mcp.CallToolResult, reportHistoryOutput, error) {
		if reports == nil {
			return nil, reportHistoryOutput{}, errAgentUnavailable
		}
		list, err := reports.History(ctx, normalizeHistoryLimit(in.Limit))
		if err != nil {
			return nil, reportHistoryOutput{}, err
		}
		out := reportHistoryOutput{Reports: make([]reportView, 0, len(list))}
		for i := range list {
			out.Reports = append(out.Reports, newReportView(&list[i]))
		}
		return nil, out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_now",
		Description: "Run the multi-timeframe analysis now without sending notifications",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ analyzeNowInput) (*mcp.CallToolResult, reportOutput, error) {
		if reports == nil {
			return nil, reportOutput{}, errAgentUnavailable
		}
		snap, err := reports.AnalyzeOnce(ctx, service.RunOptions{})
		if err != nil {
			return nil, reportOutput{}, err
		}
		return nil, newReportOutput(snap), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "candles_list",
		Description: "Get stored OHLC candles of the configured pair by timeframe and limit",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in candlesListInput) (*mcp.CallToolResult, candlesListOutput, error) {
		if candles == nil {
			return nil, candlesListOutput{}, fmt.Errorf("candle store unavailable")
		}
		tf, err := normalizeTimeframe(in.Timeframe)
		if err != nil {
			return nil, candlesListOutput{}, err
		}
		result, err := candles.GetCandles(ctx, symbol, tf, normalizeCandleLimit(in.Limit))
		if err != nil {
			return nil, candlesListOutput{}, err
		}
		return nil, candlesListOutput{Symbol: symbol, Timeframe: string(tf), Candles: result}, nil
	})
}

func newReportOutput(snap service.Snapshot) reportOutput {
	return reportOutput{
		Subject: snap.Subject,
		Block:   snap.Block,
		Report:  newReportView(snap.Report),
	}
}
