package notify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	To       []string
	Timeout  time.Duration
}

// Mailer delivers reports over SMTP with STARTTLS and PLAIN auth. The sender
// address is the SMTP user.
type Mailer struct {
	cfg  MailConfig
	send func(ctx context.Context, cfg MailConfig, msg *mail.Msg) error
}

func NewMailer(cfg MailConfig) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Mailer{cfg: cfg, send: dialAndSend}
}

func (m *Mailer) Name() string { return "email" }

func (m *Mailer) configured() bool {
	return m != nil && m.cfg.Username != "" && m.cfg.Password != "" && len(m.cfg.To) > 0
}

func (m *Mailer) Notify(ctx context.Context, msg Message) error {
	if !m.configured() {
		return ErrNotConfigured
	}
	built, err := m.Build(msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, m.cfg, built); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info().Strs("to", m.cfg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}

// Build assembles a multipart message: plain text, an HTML alternative with
// inline charts, and file attachments.
func (m *Mailer) Build(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.FromFormat(m.cfg.FromName, m.cfg.Username); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := out.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	for cid, data := range msg.Inline {
		if len(data) == 0 {
			continue
		}
		if err := out.EmbedReader(cid+".png", bytes.NewReader(data), mail.WithFileContentID(cid)); err != nil {
			return nil, fmt.Errorf("embed %s: %w", cid, err)
		}
	}

	for _, path := range msg.Attachments {
		if _, err := os.Stat(path); err != nil {
			log.Warn().Str("path", path).Msg("attachment missing, skipping")
			continue
		}
		out.AttachFile(path)
	}
	return out, nil
}

func dialAndSend(ctx context.Context, cfg MailConfig, msg *mail.Msg) error {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
