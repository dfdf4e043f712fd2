package service

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"trading-agent/internal/anomaly"
	"trading-agent/internal/chart"
	"trading-agent/internal/config"
	"trading-agent/internal/domain"
	"trading-agent/internal/indicator"
	"trading-agent/internal/market"
	"trading-agent/internal/metrics"
	"trading-agent/internal/notify"
	"trading-agent/internal/signal"
	"trading-agent/internal/strategy"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace/noop"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type stubMarket struct {
	mu    sync.Mutex
	fail  map[domain.Timeframe]error
	calls []string
}

func (m *stubMarket) Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback time.Duration) ([]domain.Candle, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol+":"+string(tf))
	m.mu.Unlock()

	if symbol == market.VIXSymbol {
		return []domain.Candle{{Symbol: symbol, Timeframe: tf, OpenTime: testNow.Add(-24 * time.Hour), Open: 18, High: 19, Low: 17, Close: 18}}, nil
	}
	if err := m.fail[tf]; err != nil {
		return nil, err
	}
	counts := map[domain.Timeframe]int{
		domain.TimeframeD1: 300, domain.TimeframeH4: 400, domain.TimeframeH1: 500,
		domain.TimeframeM15: 400, domain.TimeframeM5: 300,
	}
	return syntheticCandles(symbol, tf, counts[tf]), nil
}

func syntheticCandles(symbol string, tf domain.Timeframe, n int) []domain.Candle {
	out := make([]domain.Candle, 0, n)
	prev := 1.08
	for i := 0; i < n; i++ {
		price := 1.08 + 0.0001*float64(i) + 0.002*math.Sin(float64(i)/7)
		out = append(out, domain.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  testNow.Add(-time.Duration(n-i) * tf.Duration()),
			Open:      prev,
			High:      math.Max(prev, price) + 0.0005,
			Low:       math.Min(prev, price) - 0.0005,
			Close:     price,
		})
		prev = price
	}
	return out
}

type stubNotifier struct {
	name string
	err  error
	got  []notify.Message
}

func (n *stubNotifier) Name() string { return n.name }

func (n *stubNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.got = append(n.got, msg)
	return n.err
}

type stubCandleStore struct {
	timeframes map[domain.Timeframe]int
}

func (s *stubCandleStore) UpsertCandles(_ context.Context, candles []domain.Candle) error {
	if s.timeframes == nil {
		s.timeframes = make(map[domain.Timeframe]int)
	}
	if len(candles) > 0 {
		s.timeframes[candles[0].Timeframe] += len(candles)
	}
	return nil
}

type stubReportStore struct {
	inserted []domain.Report
}

func (s *stubReportStore) InsertReport(_ context.Context, r *domain.Report) (int64, error) {
	s.inserted = append(s.inserted, *r)
	return int64(len(s.inserted)), nil
}

func (s *stubReportStore) ListReports(_ context.Context, symbol string, limit int) ([]domain.Report, error) {
	return s.inserted, nil
}

type stubEngine struct {
	report domain.Report
}

func (e stubEngine) Analyze(in signal.Input) (domain.Report, error) {
	r := e.report
	r.Symbol, r.Label = in.Symbol, in.Label
	return r, nil
}

type stubDeduper struct {
	allow bool
	calls int
}

func (d *stubDeduper) Allow(context.Context, *domain.Report) (bool, error) {
	d.calls++
	return d.allow, nil
}

func (d *stubDeduper) Release(context.Context, *domain.Report) error { return nil }

func newTestService(t *testing.T, deps Deps, mode string) *AgentService {
	t.Helper()
	cfg := config.DefaultStrategy()
	if deps.Market == nil {
		deps.Market = &stubMarket{}
	}
	if deps.Strategy == nil {
		deps.Strategy = strategy.NewWilder(cfg)
	}
	if deps.Engine == nil {
		deps.Engine = signal.NewEngine(cfg, "", func() time.Time { return testNow })
	}
	if deps.Charts == nil {
		deps.Charts = chart.NewRenderer()
	}
	deps.Now = func() time.Time { return testNow }
	return NewAgentService(noop.NewTracerProvider().Tracer("test"), Settings{
		Symbol:     "EURUSD=X",
		Label:      "EUR/USD",
		ChartDir:   t.TempDir(),
		NotifyMode: mode,
	}, deps)
}

func noneReport() domain.Report {
	return domain.Report{
		Type:        domain.ReportSignal,
		Side:        domain.SideNone,
		Entry:       1.08,
		SL:          math.NaN(),
		TP:          math.NaN(),
		Confidence:  40,
		Levels:      domain.Levels{Price: 1.08, DayHigh: 1.09, DayLow: 1.07},
		GeneratedAt: testNow,
	}
}

func TestAnalyzeOnceFullRun(t *testing.T) {
	mail := &stubNotifier{name: "email"}
	candles := &stubCandleStore{}
	reports := &stubReportStore{}
	reg := metrics.NewRegistry()
	svc := newTestService(t, Deps{
		Candles:   candles,
		Reports:   reports,
		Notifiers: []notify.Notifier{mail},
		Metrics:   reg,
	}, config.NotifyAlways)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rep := snap.Report
	if rep.Type == domain.ReportError {
		t.Fatalf("unexpected error report: %s", rep.Error)
	}
	if rep.Levels.VIXClose != 18 || !strings.HasPrefix(rep.Mood, "Neutral") {
		t.Fatalf("unexpected vix/mood: %v %q", rep.Levels.VIXClose, rep.Mood)
	}
	if rep.ID != 1 || len(reports.inserted) != 1 {
		t.Fatalf("expected report persisted, got id=%d inserted=%d", rep.ID, len(reports.inserted))
	}
	if len(candles.timeframes) != len(domain.SupportedTimeframes) {
		t.Fatalf("expected candles for every timeframe, got %v", candles.timeframes)
	}
	if _, ok := candles.timeframes[domain.TimeframeW1]; ok {
		t.Fatal("weekly candles are derived and must not be stored")
	}

	for _, cid := range []string{"h1", "h4", "d1", "m15", "m5"} {
		if len(snap.Charts[cid]) == 0 {
			t.Fatalf("missing mini plot %s", cid)
		}
	}
	if len(snap.Chart) == 0 {
		t.Fatal("expected M15 chart bytes")
	}
	if _, err := os.Stat(rep.ChartPath); err != nil {
		t.Fatalf("expected chart on disk: %v", err)
	}

	if len(mail.got) != 1 {
		t.Fatalf("expected one email, got %d", len(mail.got))
	}
	msg := mail.got[0]
	if !strings.HasPrefix(msg.Subject, "EUR/USD ") || !strings.Contains(msg.Text, "email_sent_utc=2024-06-10 12:00:00") {
		t.Fatalf("unexpected message %q / %q", msg.Subject, msg.Text)
	}
	if !strings.Contains(msg.HTML, "cid:m15") || len(msg.Attachments) != 1 || len(msg.Photo) == 0 {
		t.Fatalf("expected inline charts, attachment and photo")
	}
	if rep.SentAt.IsZero() {
		t.Fatal("expected SentAt to be recorded")
	}

	latest, ok := svc.Latest()
	if !ok || latest.Report != rep {
		t.Fatal("expected latest snapshot to be the run")
	}
	if got := testutil.ToFloat64(reg.Notifications.WithLabelValues("email", "ok")); got != 1 {
		t.Fatalf("expected one successful notification metric, got %v", got)
	}
}

func TestAnalyzeOnceWithoutNotify(t *testing.T) {
	mail := &stubNotifier{name: "email"}
	svc := newTestService(t, Deps{Notifiers: []notify.Notifier{mail}}, config.NotifyAlways)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 0 || !snap.Report.SentAt.IsZero() {
		t.Fatal("expected no delivery without Notify")
	}
}

func TestAnalyzeOnceOptionalTimeframeMissing(t *testing.T) {
	svc := newTestService(t, Deps{Market: &stubMarket{fail: map[domain.Timeframe]error{domain.TimeframeM15: market.ErrNoData}}}, config.NotifyAlways)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Report.Setup.Action != domain.ActionWait {
		t.Fatalf("expected WAIT setup without M15, got %s", snap.Report.Setup.Action)
	}
	if len(snap.Chart) == 0 || len(snap.Charts["m15"]) == 0 {
		t.Fatal("expected placeholder charts for missing M15")
	}
}

func TestAnalyzeOnceErrorReport(t *testing.T) {
	mail := &stubNotifier{name: "email"}
	reports := &stubReportStore{}
	reg := metrics.NewRegistry()
	svc := newTestService(t, Deps{
		Market:    &stubMarket{fail: map[domain.Timeframe]error{domain.TimeframeH1: errors.New("429 too many requests")}},
		Reports:   reports,
		Notifiers: []notify.Notifier{mail},
		Metrics:   reg,
	}, config.NotifySignal)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected download error, got %v", err)
	}
	if snap.Report == nil || snap.Report.Type != domain.ReportError {
		t.Fatalf("expected error report, got %+v", snap.Report)
	}
	if len(mail.got) != 1 {
		t.Fatalf("expected error mail even in signal mode, got %d", len(mail.got))
	}
	if mail.got[0].Subject != "[ERROR] EUR/USD Agent – 2024-06-10 12:00:00 UTC" {
		t.Fatalf("unexpected subject %q", mail.got[0].Subject)
	}
	if !strings.HasPrefix(mail.got[0].Text, "Error:\n") {
		t.Fatalf("unexpected body %q", mail.got[0].Text)
	}
	if len(reports.inserted) != 1 || testutil.ToFloat64(reg.Runs.WithLabelValues("ERROR")) != 1 {
		t.Fatal("expected error run to be stored and counted")
	}
}

func TestSignalModeSkipsNonActionable(t *testing.T) {
	mail := &stubNotifier{name: "email"}
	dedupe := &stubDeduper{allow: true}
	svc := newTestService(t, Deps{
		Engine:    stubEngine{report: noneReport()},
		Notifiers: []notify.Notifier{mail},
		Deduper:   dedupe,
	}, config.NotifySignal)

	if _, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 0 || dedupe.calls != 0 {
		t.Fatalf("expected NONE report to be held back, got %d mails", len(mail.got))
	}

	if _, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true, Force: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 1 {
		t.Fatalf("expected forced delivery, got %d mails", len(mail.got))
	}
}

func TestDuplicateSignalIsNotResent(t *testing.T) {
	buy := noneReport()
	buy.Side, buy.SL, buy.TP, buy.Confidence = domain.SideBuy, 1.07, 1.095, 72
	mail := &stubNotifier{name: "email"}
	svc := newTestService(t, Deps{
		Engine:    stubEngine{report: buy},
		Notifiers: []notify.Notifier{mail},
		Deduper:   &stubDeduper{allow: false},
	}, config.NotifySignal)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 0 || !snap.Report.SentAt.IsZero() {
		t.Fatal("expected duplicate to be suppressed")
	}
}

func TestFailedDeliveryIsRetriedDespiteDedupe(t *testing.T) {
	mr := miniredis.RunT(t)
	dedupe := notify.NewDeduper(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 4*time.Hour)

	buy := noneReport()
	buy.Side, buy.SL, buy.TP, buy.Confidence = domain.SideBuy, 1.07, 1.095, 72
	mail := &stubNotifier{name: "email", err: errors.New("smtp down")}
	svc := newTestService(t, Deps{
		Engine:    stubEngine{report: buy},
		Notifiers: []notify.Notifier{mail},
		Deduper:   dedupe,
	}, config.NotifySignal)

	first, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 1 || !first.Report.SentAt.IsZero() {
		t.Fatalf("expected one attempt, got %d", len(mail.got))
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected dedupe key to be released, have %v", mr.Keys())
	}

	mail.err = nil
	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 2 || snap.Report.SentAt.IsZero() {
		t.Fatalf("expected retry to be delivered, got %d attempts", len(mail.got))
	}

	if _, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 2 {
		t.Fatalf("expected delivered signal to be deduplicated, got %d attempts", len(mail.got))
	}
}

func TestFailedDeliveryClearsSentAt(t *testing.T) {
	reg := metrics.NewRegistry()
	bad := &stubNotifier{name: "telegram", err: errors.New("chat not found")}
	svc := newTestService(t, Deps{
		Engine:    stubEngine{report: noneReport()},
		Notifiers: []notify.Notifier{bad},
		Metrics:   reg,
	}, config.NotifyAlways)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true})
	if err != nil {
		t.Fatalf("delivery errors must not fail the run: %v", err)
	}
	if !snap.Report.SentAt.IsZero() || strings.Contains(snap.Block, "email_sent_utc") {
		t.Fatal("expected SentAt cleared after failed delivery")
	}
	if got := testutil.ToFloat64(reg.Notifications.WithLabelValues("telegram", "error")); got != 1 {
		t.Fatalf("expected failure metric, got %v", got)
	}
}

func TestAnalyzeOnceRequiresDeps(t *testing.T) {
	svc := NewAgentService(noop.NewTracerProvider().Tracer("test"), Settings{Symbol: "EURUSD=X"}, Deps{})
	if _, err := svc.AnalyzeOnce(context.Background(), RunOptions{}); err == nil {
		t.Fatal("expected initialization error")
	}
	if _, ok := svc.Latest(); ok {
		t.Fatal("expected no latest snapshot")
	}
}

func TestHistory(t *testing.T) {
	svc := newTestService(t, Deps{}, config.NotifyAlways)
	if _, err := svc.History(context.Background(), 10); err == nil {
		t.Fatal("expected error without report store")
	}

	reports := &stubReportStore{inserted: []domain.Report{noneReport()}}
	svc = newTestService(t, Deps{Reports: reports}, config.NotifyAlways)
	got, err := svc.History(context.Background(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected history %v %v", got, err)
	}
}

type stubScorer struct {
	res   anomaly.Result
	err   error
	frame *indicator.Frame
}

func (s *stubScorer) Score(f *indicator.Frame) (anomaly.Result, error) {
	s.frame = f
	return s.res, s.err
}

func TestAnalyzeOnceAnomalyScore(t *testing.T) {
	scorer := &stubScorer{res: anomaly.Result{Score: 0.71, Anomalous: true, Samples: 250}}
	reg := metrics.NewRegistry()
	svc := newTestService(t, Deps{Anomaly: scorer, Metrics: reg}, config.NotifyAlways)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Report.AnomalyScore != 0.71 {
		t.Fatalf("expected anomaly score on report, got %v", snap.Report.AnomalyScore)
	}
	if scorer.frame == nil || scorer.frame.Timeframe != domain.TimeframeH1 {
		t.Fatalf("expected H1 frame to be scored, got %+v", scorer.frame)
	}
	if got := testutil.ToFloat64(reg.LastAnomaly); got != 0.71 {
		t.Fatalf("expected anomaly gauge 0.71, got %v", got)
	}
}

func TestAnalyzeOnceAnomalyErrorIgnored(t *testing.T) {
	svc := newTestService(t, Deps{Anomaly: &stubScorer{err: errors.New("too few bars")}}, config.NotifyAlways)

	snap, err := svc.AnalyzeOnce(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Report.AnomalyScore != 0 {
		t.Fatalf("expected unscored report, got %v", snap.Report.AnomalyScore)
	}
}

func TestAddNotifier(t *testing.T) {
	svc := newTestService(t, Deps{}, config.NotifyAlways)
	mail := &stubNotifier{name: "email"}
	svc.AddNotifier(mail)
	svc.AddNotifier(nil)

	if _, err := svc.AnalyzeOnce(context.Background(), RunOptions{Notify: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.got) != 1 {
		t.Fatalf("expected one delivery to the added notifier, got %d", len(mail.got))
	}
}
