package mcp

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"trading-agent/internal/config"
	"trading-agent/internal/domain"
	"trading-agent/internal/service"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubAgent struct {
	mu      sync.Mutex
	snap    *service.Snapshot
	history []domain.Report
	runs    int

	lastLimit int
}

func (s *stubAgent) setChart(png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Chart = png
}

func (s *stubAgent) Latest() (service.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return service.Snapshot{}, false
	}
	return *s.snap, true
}

func (s *stubAgent) History(ctx context.Context, limit int) ([]domain.Report, error) {
	s.lastLimit = limit
	return append([]domain.Report(nil), s.history...), nil
}

func (s *stubAgent) AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error) {
	s.runs++
	if s.snap == nil {
		return service.Snapshot{}, nil
	}
	return *s.snap, nil
}

type stubCandles struct {
	candles map[domain.Timeframe][]domain.Candle

	lastSymbol string
	lastLimit  int
}

func (s *stubCandles) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	s.lastSymbol = symbol
	s.lastLimit = limit
	list := s.candles[tf]
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]domain.Candle(nil), list...), nil
}

func sampleReport() domain.Report {
	return domain.Report{
		ID:          9,
		Type:        domain.ReportSignal,
		Symbol:      "EURUSD=X",
		Label:       "EUR/USD",
		Side:        domain.SideNone,
		Entry:       1.0851,
		SL:          math.NaN(),
		TP:          math.NaN(),
		Confidence:  40,
		GeneratedAt: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func testServer() (*sdkmcp.Server, *stubAgent, *stubCandles) {
	rep := sampleReport()
	agent := &stubAgent{
		snap:    &service.Snapshot{Report: &rep, Subject: "EUR/USD SIGNAL: NONE (40%)", Block: "TYPE=SIGNAL"},
		history: []domain.Report{rep},
	}
	candles := &stubCandles{candles: map[domain.Timeframe][]domain.Candle{
		domain.TimeframeH1: {{Symbol: "EURUSD=X", Timeframe: domain.TimeframeH1, Open: 1.08, High: 1.09, Low: 1.07, Close: 1.085, OpenTime: time.Unix(0, 0).UTC()}},
	}}

	srv := NewServer(nil, agent, candles, ServerConfig{
		Symbol:         "EURUSD=X",
		Strategy:       config.DefaultStrategy(),
		RequestTimeout: time.Second,
	})
	return srv, agent, candles
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
