package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"

	"trading-agent/internal/bot"
	"trading-agent/internal/cache"
	"trading-agent/internal/config"
	"trading-agent/internal/db"
	"trading-agent/internal/logger"
	"trading-agent/internal/notify"
	"trading-agent/internal/tracing"
	"trading-agent/internal/tui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	loadEnvFunc          = godotenv.Load
	loadConfigFunc       = config.Load
	getenvFunc           = os.Getenv
	initPostgresFunc     = db.InitPostgres
	initRedisFunc        = cache.InitRedis
	initTracerFunc       = tracing.InitTracer
	newAppFunc           = newApp
	startTelegramBotFunc = bot.StartTelegramBot
	newMailerFunc        = func(cfg notify.MailConfig) notify.Notifier { return notify.NewMailer(cfg) }
	newRouterFunc        = gin.Default
	runTUIFunc           = tui.Run
	runStdioFunc         = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(ctx context.Context, quit <-chan os.Signal) {
		select {
		case <-quit:
		case <-ctx.Done():
		}
	}
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Trading Agent API
// @version         1.0
// @description     Multi-timeframe FX analysis reports, charts and on-demand runs.

// @BasePath  /
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agent",
		Short: "Multi-timeframe FX trading agent",
		Long: `agent downloads D1/H4/H1/M15/M5 candles for one FX pair, evaluates the
trend regime and the H1 breakout levels, renders charts and reports the
result by email or Telegram, once or on a schedule.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			envErr := loadEnvFunc()
			logger.Setup(getenvFunc("LOG_LEVEL"), getenvFunc("LOG_FORMAT"))
			if envErr != nil {
				log.Debug().Err(envErr).Msg(".env not loaded")
			}
		},
	}
	root.AddCommand(
		newRunCmd(),
		newScheduleCmd(),
		newWatchCmd(),
		newMCPCmd(),
		newCheckEnvCmd(),
		newTestMailCmd(),
	)
	return root
}
