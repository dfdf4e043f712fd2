package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"trading-agent/internal/notify"

	tele "gopkg.in/telebot.v3"
)

const (
	// Telegram rejects text above 4096 characters and captions above 1024.
	maxMessageLen = 4000
	maxCaptionLen = 1000
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher is the Telegram notification channel. Chats from
// TELEGRAM_CHAT_IDS start subscribed; /alerts toggles the rest at runtime.
type AlertDispatcher struct {
	sender messageSender

	mu    sync.RWMutex
	chats map[int64]bool
}

func NewAlertDispatcher(sender messageSender, chatIDs ...int64) *AlertDispatcher {
	chats := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		chats[id] = true
	}
	return &AlertDispatcher{sender: sender, chats: chats}
}

// Subscribe reports whether the chat was newly added.
func (d *AlertDispatcher) Subscribe(chatID int64) bool {
	return d.set(chatID, true)
}

// Unsubscribe reports whether the chat was subscribed before.
func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	return d.set(chatID, false)
}

func (d *AlertDispatcher) set(chatID int64, on bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chats[chatID] == on {
		return false
	}
	if on {
		d.chats[chatID] = true
	} else {
		delete(d.chats, chatID)
	}
	return true
}

func (d *AlertDispatcher) IsSubscribed(chatID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.chats[chatID]
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.chats)
}

func (d *AlertDispatcher) Name() string { return "telegram" }

// Notify sends the report text to every subscribed chat, then the M15 chart
// when present. A failing chat does not stop delivery to the others.
func (d *AlertDispatcher) Notify(ctx context.Context, msg notify.Message) error {
	if d == nil || d.sender == nil {
		return notify.ErrNotConfigured
	}

	text := clip(msg.Subject+"\n\n"+msg.Text, maxMessageLen)
	var errs []error
	for _, id := range d.subscribers() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		chat := &tele.Chat{ID: id}
		if _, err := d.sender.Send(chat, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
			continue
		}
		if len(msg.Photo) == 0 {
			continue
		}
		photo := &tele.Photo{
			File:    tele.FromReader(bytes.NewReader(msg.Photo)),
			Caption: clip(msg.Subject, maxCaptionLen),
		}
		if _, err := d.sender.Send(chat, photo); err != nil {
			errs = append(errs, fmt.Errorf("chat %d chart: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (d *AlertDispatcher) subscribers() []int64 {
	d.mu.RLock()
	ids := make([]int64, 0, len(d.chats))
	for id := range d.chats {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func parseAlertMode(args []string) (string, error) {
	if len(args) == 0 {
		return "status", nil
	}
	mode := strings.ToLower(strings.TrimSpace(args[0]))
	switch mode {
	case "on", "off", "status":
		return mode, nil
	}
	return "", fmt.Errorf("unknown alerts mode %q", args[0])
}

// clip cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}
