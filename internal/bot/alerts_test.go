package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"trading-agent/internal/notify"

	tele "gopkg.in/telebot.v3"
)

type sent struct {
	text    string
	caption string
}

type recordingSender struct {
	byChat map[int64][]sent
	broken map[int64]bool
}

func (r *recordingSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	chat, ok := to.(*tele.Chat)
	if !ok {
		return nil, errors.New("recipient is not a chat")
	}
	if r.broken[chat.ID] {
		return nil, errors.New("bot was blocked by the user")
	}
	if r.byChat == nil {
		r.byChat = make(map[int64][]sent)
	}
	var s sent
	switch v := what.(type) {
	case string:
		s.text = v
	case *tele.Photo:
		s.caption = v.Caption
	}
	r.byChat[chat.ID] = append(r.byChat[chat.ID], s)
	return &tele.Message{}, nil
}

func TestParseAlertMode(t *testing.T) {
	cases := map[string]string{"": "status", "on": "on", " OFF ": "off", "Status": "status"}
	for in, want := range cases {
		var args []string
		if in != "" {
			args = []string{in}
		}
		got, err := parseAlertMode(args)
		if err != nil || got != want {
			t.Fatalf("parseAlertMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseAlertMode([]string{"loud"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSubscriptions(t *testing.T) {
	d := NewAlertDispatcher(&recordingSender{}, 10)

	if d.Subscribe(10) {
		t.Fatal("configured chat should already be subscribed")
	}
	if !d.Subscribe(20) || d.SubscriberCount() != 2 {
		t.Fatalf("expected chat 20 to be added, count %d", d.SubscriberCount())
	}
	if !d.Unsubscribe(20) || d.Unsubscribe(20) {
		t.Fatal("expected exactly one successful unsubscribe")
	}
	if d.IsSubscribed(20) || !d.IsSubscribed(10) {
		t.Fatal("unexpected subscription state")
	}
}

func TestNotifySendsTextThenChart(t *testing.T) {
	s := &recordingSender{}
	d := NewAlertDispatcher(s, 10, 20)

	err := d.Notify(context.Background(), notify.Message{
		Subject: "EUR/USD SIGNAL: BUY (72%)",
		Text:    "TYPE=SIGNAL\nSide=BUY",
		Photo:   []byte("png"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []int64{10, 20} {
		got := s.byChat[id]
		if len(got) != 2 {
			t.Fatalf("chat %d: expected text and chart, got %+v", id, got)
		}
		if !strings.Contains(got[0].text, "Side=BUY") || got[1].caption != "EUR/USD SIGNAL: BUY (72%)" {
			t.Fatalf("chat %d: unexpected messages %+v", id, got)
		}
	}
}

func TestNotifyTextOnlyWithoutChart(t *testing.T) {
	s := &recordingSender{}
	d := NewAlertDispatcher(s, 10)
	if err := d.Notify(context.Background(), notify.Message{Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.byChat[10]) != 1 {
		t.Fatalf("expected a single text message, got %+v", s.byChat[10])
	}
}

func TestNotifyNoSubscribers(t *testing.T) {
	s := &recordingSender{}
	d := NewAlertDispatcher(s)
	if err := d.Notify(context.Background(), notify.Message{Subject: "s"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.byChat) != 0 {
		t.Fatalf("expected nothing sent, got %+v", s.byChat)
	}
}

func TestNotifyContinuesPastFailingChat(t *testing.T) {
	s := &recordingSender{broken: map[int64]bool{20: true}}
	d := NewAlertDispatcher(s, 10, 20, 30)

	err := d.Notify(context.Background(), notify.Message{Subject: "s"})
	if err == nil || !strings.Contains(err.Error(), "chat 20") {
		t.Fatalf("expected chat 20 failure, got %v", err)
	}
	if len(s.byChat[10]) != 1 || len(s.byChat[30]) != 1 {
		t.Fatalf("expected other chats to be served, got %+v", s.byChat)
	}
}

func TestNotifyStopsOnCancelledContext(t *testing.T) {
	s := &recordingSender{}
	d := NewAlertDispatcher(s, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Notify(ctx, notify.Message{Subject: "s"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(s.byChat) != 0 {
		t.Fatal("expected nothing sent")
	}
}

func TestNilDispatcherNotConfigured(t *testing.T) {
	var d *AlertDispatcher
	if err := d.Notify(context.Background(), notify.Message{}); !errors.Is(err, notify.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClipKeepsRunesWhole(t *testing.T) {
	got := clip("ab€", 3)
	if got != "ab\n[truncated]" {
		t.Fatalf("unexpected clip %q", got)
	}
	if clip("short", 10) != "short" {
		t.Fatal("short strings must pass through")
	}
}
