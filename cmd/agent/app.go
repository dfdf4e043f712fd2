package main

import (
	"context"
	"fmt"
	"time"

	_ "trading-agent/docs"
	"trading-agent/internal/anomaly"
	"trading-agent/internal/chart"
	"trading-agent/internal/config"
	"trading-agent/internal/domain"
	"trading-agent/internal/handler"
	"trading-agent/internal/job"
	"trading-agent/internal/market"
	mcpserver "trading-agent/internal/mcp"
	"trading-agent/internal/metrics"
	"trading-agent/internal/notify"
	"trading-agent/internal/repository"
	"trading-agent/internal/service"
	"trading-agent/internal/signal"
	"trading-agent/internal/strategy"
	"trading-agent/internal/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// agent is the analysis service as the commands drive it.
type agent interface {
	Latest() (service.Snapshot, bool)
	History(ctx context.Context, limit int) ([]domain.Report, error)
	AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error)
	AddNotifier(n notify.Notifier)
}

// app is the wired agent with its optional storage. candles and pruner are
// nil without Postgres.
type app struct {
	cfg      *config.Config
	strategy config.StrategyConfig
	tracer   trace.Tracer
	agent    agent
	metrics  *metrics.Registry
	candles  mcpserver.CandleReader
	pruner   job.ReportPruner
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	strat, err := config.LoadStrategy(cfg.StrategyConfig)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}

	a := &app{cfg: cfg, strategy: strat, metrics: metrics.NewRegistry()}

	tp, tracer, err := initTracerFunc(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	a.tracer = tracer
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("error shutting down tracer provider")
		}
	})

	pool, err := initPostgresFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	redisClient, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("continuing without Redis")
		redisClient = nil
	}

	deps := service.Deps{
		Market:   newMarketProvider(cfg, redisClient),
		Strategy: strategy.NewWilder(strat),
		Engine:   signal.NewEngine(strat, cfg.MarketMoodOverride, nil),
		Charts:   chart.NewRenderer(),
		Anomaly:  anomaly.NewDetector(anomaly.DefaultTrainOptions()),
		Metrics:  a.metrics,
	}

	if pool != nil {
		a.closers = append(a.closers, pool.Close)
		candleRepo := repository.NewCandleRepository(pool, tracer)
		reportRepo := repository.NewReportRepository(pool, tracer)
		if err := candleRepo.RunMigrations(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run candle migrations: %w", err)
		}
		if err := reportRepo.RunMigrations(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run report migrations: %w", err)
		}
		deps.Candles, deps.Reports = candleRepo, reportRepo
		a.candles, a.pruner = candleRepo, reportRepo
	}
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		deps.Deduper = notify.NewDeduper(redisClient, cfg.NotifyDedupe())
	}

	a.agent = service.NewAgentService(tracer, service.Settings{
		Symbol:     cfg.Pair,
		Label:      cfg.PairLabel,
		ChartDir:   cfg.ChartDir,
		Location:   loc,
		NotifyMode: cfg.NotifyMode,
	}, deps)
	return a, nil
}

// Close releases storage and flushes traces, in reverse order of setup.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// attachNotifiers enables the requested delivery channels. A requested but
// unconfigured email channel is skipped with a warning.
func (a *app) attachNotifiers(email, telegram bool) error {
	if email {
		if a.cfg.EmailConfigured() {
			a.agent.AddNotifier(newMailerFunc(mailConfig(a.cfg)))
		} else {
			log.Warn().Msg("--email set but SMTP_USER/SMTP_PASS/EMAIL_TO incomplete, email disabled")
		}
	}
	if telegram {
		alerts, err := startTelegramBotFunc(a.cfg.TelegramBotToken, a.cfg.TelegramChatIDs, a.agent)
		if err != nil {
			return err
		}
		if alerts != nil {
			a.agent.AddNotifier(alerts)
		}
	}
	return nil
}

// router serves the status API with tracing and CORS.
func (a *app) router() *gin.Engine {
	r := newRouterFunc()
	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(corsMiddleware(a.cfg.CORSOrigins))
	handler.New(a.tracer, a.agent, a.metrics.Handler()).RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	for _, o := range origins {
		if o == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func newMarketProvider(cfg *config.Config, client *redis.Client) market.Provider {
	yahoo := market.NewYahooProvider(cfg.YahooRatePerSec)
	if client == nil {
		return yahoo
	}
	return market.NewCachedProvider(yahoo, client)
}

func mailConfig(cfg *config.Config) notify.MailConfig {
	return notify.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		FromName: cfg.EmailFromName,
		To:       cfg.EmailTo,
	}
}
