package main

import (
	"strings"

	"trading-agent/internal/config"
	"trading-agent/internal/service"

	"github.com/spf13/cobra"
)

type runOptions struct {
	email    bool
	telegram bool
	pair     string
	chartDir string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one analysis and print the report",
		Long: `Run one full analysis of the configured pair and print the report block.
Delivery channels are only used when requested. The exit code is 1 when the
analysis fails; the ERROR report is still printed and delivered.

Examples:
  agent run
  agent run --email
  agent run --pair GBPUSD=X --chart-dir /tmp/charts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.email, "email", false, "Send the report by email")
	cmd.Flags().BoolVar(&opts.telegram, "telegram", false, "Send the report to the configured Telegram chats")
	cmd.Flags().StringVar(&opts.pair, "pair", "", "Yahoo ticker to analyze (default from PAIR)")
	cmd.Flags().StringVar(&opts.chartDir, "chart-dir", "", "Directory for the M15 chart (default from CHART_DIR)")
	return cmd
}

func runOnce(cmd *cobra.Command, opts runOptions) error {
	cfg := loadConfigFunc()
	applyRunOverrides(cfg, opts.pair, opts.chartDir)

	ctx := cmd.Context()
	a, err := newAppFunc(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.attachNotifiers(opts.email, opts.telegram); err != nil {
		return err
	}
	snap, err := a.agent.AnalyzeOnce(ctx, service.RunOptions{Notify: opts.email || opts.telegram})
	printSnapshot(cmd.OutOrStdout(), snap)
	return err
}

func applyRunOverrides(cfg *config.Config, pair, chartDir string) {
	if p := strings.ToUpper(strings.TrimSpace(pair)); p != "" {
		cfg.Pair = p
		cfg.PairLabel = config.LabelForPair(p)
	}
	if d := strings.TrimSpace(chartDir); d != "" {
		cfg.ChartDir = d
	}
}
