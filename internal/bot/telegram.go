package bot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"trading-agent/internal/service"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// Agent is the part of the analysis service the bot commands need.
type Agent interface {
	Latest() (service.Snapshot, bool)
	AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error)
}

const runTimeout = 2 * time.Minute

// StartTelegramBot starts the command bot and returns the dispatcher used for
// report alerts. It returns nil without a token.
func StartTelegramBot(token string, chatIDs []int64, agent Agent) (*AlertDispatcher, error) {
	if token == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	alerts := NewAlertDispatcher(b, chatIDs...)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/report", func(c tele.Context) error {
		return c.Send(latestReply(agent))
	})

	b.Handle("/chart", func(c tele.Context) error {
		if agent == nil {
			return c.Send("Agent unavailable")
		}
		snap, ok := agent.Latest()
		if !ok || len(snap.Chart) == 0 {
			return c.Send("No M15 chart available yet. Try /run.")
		}
		return c.Send(&tele.Photo{
			File:    tele.FromReader(bytes.NewReader(snap.Chart)),
			Caption: snap.Subject,
		})
	})

	b.Handle("/run", func(c tele.Context) error {
		if agent == nil {
			return c.Send("Agent unavailable")
		}
		_ = c.Notify(tele.Typing)
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		snap, err := agent.AnalyzeOnce(ctx, service.RunOptions{})
		if err != nil {
			log.Error().Err(err).Int64("chat", c.Chat().ID).Msg("telegram /run failed")
			return c.Send(fmt.Sprintf("Analysis failed: %v", err))
		}
		return c.Send(snapshotText(snap))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Report alerts enabled for this chat.")
			}
			return c.Send("Report alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Report alerts disabled for this chat.")
			}
			return c.Send("Report alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	log.Info().Int("subscribers", alerts.SubscriberCount()).Msg("Telegram bot started")
	go b.Start()
	return alerts, nil
}

func latestReply(agent Agent) string {
	if agent == nil {
		return "Agent unavailable"
	}
	snap, ok := agent.Latest()
	if !ok {
		return "No report yet. Try /run."
	}
	return snapshotText(snap)
}

func snapshotText(snap service.Snapshot) string {
	return clip(snap.Subject+"\n\n"+snap.Block, maxMessageLen)
}
