package notify

import (
	"context"
	"errors"
	"fmt"

	"trading-agent/internal/config"
	"trading-agent/internal/domain"
)

// ErrNotConfigured is returned by a channel whose credentials are missing.
var ErrNotConfigured = errors.New("notification channel not configured")

// Message is one rendered report ready for delivery.
type Message struct {
	Subject string
	Text    string
	HTML    string
	// Inline maps a Content-ID (h1, h4, ...) to a PNG referenced from HTML.
	Inline map[string][]byte
	// Attachments are file paths; missing files are skipped.
	Attachments []string
	// Photo is the full M15 chart, sent by chat channels.
	Photo []byte
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ShouldNotify applies NOTIFY_MODE. Errors are always delivered; in signal
// mode only actionable reports go out.
func ShouldNotify(mode string, r *domain.Report) bool {
	if r == nil {
		return false
	}
	if r.Type == domain.ReportError {
		return true
	}
	if mode == config.NotifySignal {
		return r.Actionable()
	}
	return true
}
