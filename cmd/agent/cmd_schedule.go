package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"trading-agent/internal/job"
	"trading-agent/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type scheduleOptions struct {
	every    time.Duration
	email    bool
	telegram bool
	http     bool
}

func newScheduleCmd() *cobra.Command {
	var opts scheduleOptions
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the analysis now and then on a fixed interval",
		Long: `Run the analysis immediately and then every interval until SIGINT or
SIGTERM. Old reports are pruned hourly when Postgres is configured.

Examples:
  agent schedule --email
  agent schedule --every 5m --telegram --http`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.every, "every", 0, "Run interval (default from AGENT_INTERVAL_MINS)")
	cmd.Flags().BoolVar(&opts.email, "email", false, "Send reports by email")
	cmd.Flags().BoolVar(&opts.telegram, "telegram", false, "Send reports to Telegram and answer bot commands")
	cmd.Flags().BoolVar(&opts.http, "http", false, "Serve the status API on HTTP_ADDR")
	return cmd
}

func runSchedule(cmd *cobra.Command, opts scheduleOptions) error {
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newAppFunc(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.attachNotifiers(opts.email, opts.telegram); err != nil {
		return err
	}

	every := opts.every
	if every <= 0 {
		every = cfg.Interval()
	}
	runOpts := service.RunOptions{Notify: opts.email || opts.telegram}
	poller := job.NewAgentPoller(a.tracer, a.agent, every, runOpts)
	retention := job.NewReportRetention(a.tracer, a.pruner, cfg.Retention())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		retention.Start(ctx)
	}()

	var srv *http.Server
	if opts.http {
		srv = &http.Server{Addr: cfg.HTTPAddr, Handler: a.router()}
		go func() {
			if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", srv.Addr).Msg("http server failed")
				cancel()
			}
		}()
		log.Info().Str("addr", srv.Addr).Msg("status API listening")
	}

	log.Info().
		Dur("every", every).
		Bool("notify", runOpts.Notify).
		Str("pair", cfg.Pair).
		Msg("scheduler started")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(ctx, quit)
	log.Info().Msg("Shutting down scheduler...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server forced to shutdown")
		}
	}
	wg.Wait()

	log.Info().Msg("Scheduler exiting")
	return nil
}
