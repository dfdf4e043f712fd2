package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"trading-agent/internal/anomaly"
	"trading-agent/internal/domain"
	"trading-agent/internal/indicator"
	"trading-agent/internal/market"
	"trading-agent/internal/metrics"
	"trading-agent/internal/notify"
	"trading-agent/internal/report"
	"trading-agent/internal/signal"
	"trading-agent/internal/strategy"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mini plot window per timeframe, in bars.
var miniPlotTails = map[domain.Timeframe]int{
	domain.TimeframeH1:  300,
	domain.TimeframeH4:  400,
	domain.TimeframeD1:  260,
	domain.TimeframeM15: 300,
	domain.TimeframeM5:  300,
}

type Analyzer interface {
	Analyze(in signal.Input) (domain.Report, error)
}

type ChartRenderer interface {
	WriteM15(dir, symbol string, loc *time.Location, f *indicator.Frame) (string, error)
	RenderClose(candles []domain.Candle, title string) ([]byte, error)
}

type CandleStore interface {
	UpsertCandles(ctx context.Context, candles []domain.Candle) error
}

type ReportStore interface {
	InsertReport(ctx context.Context, report *domain.Report) (int64, error)
	ListReports(ctx context.Context, symbol string, limit int) ([]domain.Report, error)
}

// AnomalyScorer rates how unusual the last bar of a frame is.
type AnomalyScorer interface {
	Score(f *indicator.Frame) (anomaly.Result, error)
}

type Deduper interface {
	Allow(ctx context.Context, r *domain.Report) (bool, error)
	Release(ctx context.Context, r *domain.Report) error
}

// Settings are the per-deployment values of a run.
type Settings struct {
	Symbol     string
	Label      string
	ChartDir   string
	Location   *time.Location
	NotifyMode string
}

// Deps are the collaborators of AgentService. Market, Strategy, Engine and
// Charts are required; the rest may be nil.
type Deps struct {
	Market    market.Provider
	Strategy  strategy.Strategy
	Engine    Analyzer
	Charts    ChartRenderer
	Candles   CandleStore
	Reports   ReportStore
	Notifiers []notify.Notifier
	Deduper   Deduper
	Anomaly   AnomalyScorer
	Metrics   *metrics.Registry
	Now       func() time.Time
}

type RunOptions struct {
	// Notify delivers the report through the configured notifiers.
	Notify bool
	// Force skips NOTIFY_MODE and dedupe.
	Force bool
}

// Snapshot is a finished run: the report, its rendered text and its charts.
type Snapshot struct {
	Report  *domain.Report
	Subject string
	Block   string
	// Charts holds the close-price mini plots keyed by h1, h4, d1, m15, m5.
	Charts map[string][]byte
	// Chart is the full M15 candle chart.
	Chart []byte
}

// AgentService runs the multi-timeframe analysis. Runs are serialized.
type AgentService struct {
	tracer   trace.Tracer
	settings Settings
	deps     Deps

	runMu sync.Mutex

	mu     sync.RWMutex
	latest *Snapshot
}

func NewAgentService(tracer trace.Tracer, settings Settings, deps Deps) *AgentService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.Label == "" {
		settings.Label = settings.Symbol
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AgentService{tracer: tracer, settings: settings, deps: deps}
}

// AddNotifier registers a delivery channel. It waits for a run in flight.
func (s *AgentService) AddNotifier(n notify.Notifier) {
	if n == nil {
		return
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.deps.Notifiers = append(s.deps.Notifiers, n)
}

// Latest returns the snapshot of the most recent run.
func (s *AgentService) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Snapshot{}, false
	}
	return *s.latest, true
}

// History lists stored reports, newest first.
func (s *AgentService) History(ctx context.Context, limit int) ([]domain.Report, error) {
	_, span := s.tracer.Start(ctx, "agent-service.history")
	defer span.End()

	if s.deps.Reports == nil {
		return nil, fmt.Errorf("report history requires DATABASE_URL")
	}
	return s.deps.Reports.ListReports(ctx, s.settings.Symbol, limit)
}

// AnalyzeOnce performs one full run. On failure an ERROR report is produced
// and, when requested, delivered; the original error is returned with it.
func (s *AgentService) AnalyzeOnce(ctx context.Context, opts RunOptions) (Snapshot, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "agent-service.analyze-once")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", s.settings.Symbol))

	if s.deps.Market == nil || s.deps.Strategy == nil || s.deps.Engine == nil || s.deps.Charts == nil {
		return Snapshot{}, fmt.Errorf("agent service is not fully initialized")
	}

	start := s.deps.Now().UTC()
	snap, err := s.analyze(ctx, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("symbol", s.settings.Symbol).Msg("analysis failed")

		rep := &domain.Report{
			Type:        domain.ReportError,
			Symbol:      s.settings.Symbol,
			Label:       s.settings.Label,
			Error:       err.Error(),
			JobStart:    start,
			GeneratedAt: s.deps.Now().UTC(),
		}
		failed := Snapshot{Report: rep, Subject: report.Subject(rep), Block: report.Block(rep)}
		if opts.Notify {
			if nerr := s.deliver(ctx, &failed, opts); nerr != nil {
				log.Error().Err(nerr).Msg("error report delivery failed")
			}
		}
		s.persistReport(ctx, rep)
		s.deps.Metrics.ObserveRun(rep, time.Since(start))
		s.store(failed)
		return failed, err
	}

	if opts.Notify {
		if nerr := s.deliver(ctx, &snap, opts); nerr != nil {
			log.Error().Err(nerr).Msg("report delivery failed")
		}
	}
	s.persistReport(ctx, snap.Report)
	s.deps.Metrics.ObserveRun(snap.Report, time.Since(start))
	s.store(snap)

	log.Info().
		Str("symbol", s.settings.Symbol).
		Str("type", string(snap.Report.Type)).
		Str("side", string(snap.Report.Side)).
		Int("confidence", snap.Report.Confidence).
		Msg("analysis finished")
	return snap, nil
}

func (s *AgentService) analyze(ctx context.Context, start time.Time) (Snapshot, error) {
	raw, err := market.FetchPlan(ctx, s.deps.Market, s.settings.Symbol, market.DefaultPlan)
	if err != nil {
		return Snapshot{}, fmt.Errorf("download %s: %w", s.settings.Symbol, err)
	}
	raw[domain.TimeframeW1] = market.Resample(raw[domain.TimeframeD1], domain.TimeframeW1)
	vix := s.vixClose(ctx)

	frames := make(map[domain.Timeframe]*indicator.Frame, len(raw))
	for tf, candles := range raw {
		frames[tf] = s.deps.Strategy.Enrich(tf, candles)
	}

	regime := s.deps.Strategy.Regime(frames[domain.TimeframeD1], frames[domain.TimeframeH4], frames[domain.TimeframeH1])
	setup := s.deps.Strategy.Signal(frames[domain.TimeframeM15], regime.Bias)

	rep, err := s.deps.Engine.Analyze(signal.Input{
		Symbol:   s.settings.Symbol,
		Label:    s.settings.Label,
		Frames:   frames,
		VIXClose: vix,
		Regime:   regime,
		Setup:    setup,
	})
	if err != nil {
		return Snapshot{}, err
	}
	rep.JobStart = start
	s.scoreAnomaly(&rep, frames[domain.TimeframeH1])

	snap := Snapshot{Report: &rep, Charts: s.miniPlots(frames)}
	path, err := s.deps.Charts.WriteM15(s.settings.ChartDir, s.settings.Symbol, s.settings.Location, frames[domain.TimeframeM15])
	if err != nil {
		log.Warn().Err(err).Msg("M15 chart not written")
	} else {
		rep.ChartPath = path
		if data, rerr := os.ReadFile(path); rerr == nil {
			snap.Chart = data
		}
	}

	s.persistCandles(ctx, raw)
	snap.Subject = report.Subject(&rep)
	snap.Block = report.Block(&rep)
	return snap, nil
}

// vixClose returns the last VIX close, or NaN when the download fails.
func (s *AgentService) vixClose(ctx context.Context) float64 {
	candles, err := s.deps.Market.Fetch(ctx, market.VIXSymbol, market.VIXRequest.Timeframe, market.VIXRequest.Lookback)
	if err != nil || len(candles) == 0 {
		log.Warn().Err(err).Msg("VIX unavailable, market mood falls back to neutral")
		return math.NaN()
	}
	return candles[len(candles)-1].Close
}

func (s *AgentService) scoreAnomaly(rep *domain.Report, h1 *indicator.Frame) {
	if s.deps.Anomaly == nil || h1 == nil {
		return
	}
	res, err := s.deps.Anomaly.Score(h1.Complete())
	if err != nil {
		log.Debug().Err(err).Msg("anomaly score skipped")
		return
	}
	rep.AnomalyScore = res.Score
	if res.Anomalous {
		log.Warn().
			Float64("score", res.Score).
			Int("samples", res.Samples).
			Msg("last H1 bar is unusual")
	}
}

func (s *AgentService) miniPlots(frames map[domain.Timeframe]*indicator.Frame) map[string][]byte {
	name := strings.TrimSuffix(s.settings.Symbol, "=X")
	out := make(map[string][]byte, len(miniPlotTails))
	for tf, tail := range miniPlotTails {
		var candles []domain.Candle
		if f := frames[tf]; f != nil {
			candles = f.Tail(tail).Candles
		}
		data, err := s.deps.Charts.RenderClose(candles, fmt.Sprintf("%s %s – Close", name, tf))
		if err != nil {
			log.Warn().Err(err).Str("timeframe", string(tf)).Msg("mini plot failed")
			continue
		}
		out[strings.ToLower(tf.Label())] = data
	}
	return out
}

func (s *AgentService) deliver(ctx context.Context, snap *Snapshot, opts RunOptions) error {
	ctx, span := s.tracer.Start(ctx, "agent-service.notify")
	defer span.End()

	if len(s.deps.Notifiers) == 0 {
		return nil
	}
	rep := snap.Report
	claimed := false
	if !opts.Force {
		if !notify.ShouldNotify(s.settings.NotifyMode, rep) {
			log.Info().Str("mode", s.settings.NotifyMode).Msg("report not sent: no actionable signal")
			return nil
		}
		if s.deps.Deduper != nil {
			ok, err := s.deps.Deduper.Allow(ctx, rep)
			if err != nil {
				log.Warn().Err(err).Msg("dedupe check failed, sending anyway")
			}
			if !ok {
				log.Info().Str("key", notify.Key(rep)).Msg("report not sent: duplicate within dedupe window")
				return nil
			}
			claimed = err == nil
		}
	}

	rep.SentAt = s.deps.Now().UTC()
	snap.Block = report.Block(rep)
	msg := notify.Message{
		Subject: snap.Subject,
		Text:    snap.Block,
		HTML:    report.HTML(snap.Block, snap.Charts),
		Inline:  snap.Charts,
		Photo:   snap.Chart,
	}
	if rep.ChartPath != "" {
		msg.Attachments = []string{rep.ChartPath}
	}

	var errs []error
	sent := 0
	for _, n := range s.deps.Notifiers {
		err := n.Notify(ctx, msg)
		s.deps.Metrics.ObserveNotify(n.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		sent++
	}
	if sent == 0 {
		rep.SentAt = time.Time{}
		snap.Block = report.Block(rep)
		if claimed {
			// nothing went out, so the next run may try again
			if err := s.deps.Deduper.Release(ctx, rep); err != nil {
				log.Warn().Err(err).Str("key", notify.Key(rep)).Msg("dedupe release failed")
			}
		}
	}
	return errors.Join(errs...)
}

func (s *AgentService) persistCandles(ctx context.Context, raw map[domain.Timeframe][]domain.Candle) {
	if s.deps.Candles == nil {
		return
	}
	for tf, candles := range raw {
		if tf == domain.TimeframeW1 {
			continue
		}
		if err := s.deps.Candles.UpsertCandles(ctx, candles); err != nil {
			log.Warn().Err(err).Str("timeframe", string(tf)).Msg("candle upsert failed")
		}
	}
}

func (s *AgentService) persistReport(ctx context.Context, rep *domain.Report) {
	if s.deps.Reports == nil {
		return
	}
	id, err := s.deps.Reports.InsertReport(ctx, rep)
	if err != nil {
		log.Warn().Err(err).Msg("report insert failed")
		return
	}
	rep.ID = id
}

func (s *AgentService) store(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &snap
}
