package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"trading-agent/internal/config"
	"trading-agent/internal/notify"

	"github.com/spf13/cobra"
)

var checkEnvKeys = []string{"EMAIL_TO", "SMTP_USER", "SMTP_PASS", "SMTP_HOST", "SMTP_PORT", "TZ"}

// Secrets whose value is never printed.
var presenceOnlyKeys = []string{"TELEGRAM_BOT_TOKEN", "DATABASE_URL", "REDIS_URL", "MCP_AUTH_TOKEN"}

const notSet = "NOT SET"

func newCheckEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-env",
		Short: "Print the mail and timezone settings as the agent sees them",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			writeEnvReport(cmd.OutOrStdout(), getenvFunc)
		},
	}
}

func writeEnvReport(w io.Writer, getenv func(string) string) {
	fmt.Fprintln(w, titleStyle.Render("===== ENV CHECK ====="))
	for _, key := range checkEnvKeys {
		v := strings.TrimSpace(getenv(key))
		switch {
		case v == "":
			v = notSet
		case key == "SMTP_PASS":
			v = (&config.Config{SMTPPass: v}).MaskedPassword() + " (set)"
		}
		fmt.Fprintf(w, "%s = %s\n", key, v)
	}
	for _, key := range presenceOnlyKeys {
		v := "set"
		if strings.TrimSpace(getenv(key)) == "" {
			v = notSet
		}
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s = %s", key, v)))
	}
	fmt.Fprintln(w, titleStyle.Render("====================="))
}

func newTestMailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "testmail",
		Short: "Send a test mail to EMAIL_TO",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigFunc()
			if !cfg.EmailConfigured() {
				return fmt.Errorf("SMTP_USER, SMTP_PASS and EMAIL_TO must be set")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			err := newMailerFunc(mailConfig(cfg)).Notify(ctx, notify.Message{
				Subject: "Test mail from the trading agent",
				Text:    "This test mail confirms that SMTP delivery works.",
			})
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("[ERROR] could not send mail: "+err.Error()))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("[OK] test mail sent to "+strings.Join(cfg.EmailTo, ", ")))
			return nil
		},
	}
}
