package main

import (
	"context"
	"time"

	"trading-agent/internal/job"
	"trading-agent/internal/service"
	"trading-agent/internal/tui"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the terminal dashboard",
		Long: `Open the terminal dashboard with the latest report and the stored history.
Press "a" to run an analysis. With --every the analysis also runs in the
background; watch never sends notifications.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigFunc()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newAppFunc(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if every > 0 {
				poller := job.NewAgentPoller(a.tracer, a.agent, every, service.RunOptions{})
				go poller.Start(ctx)
			}
			return runTUIFunc(tui.Services{Reports: a.agent, History: a.agent})
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "Also run the analysis in the background on this interval")
	return cmd
}
