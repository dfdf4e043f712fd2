package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Pair      string
	PairLabel string
	Timezone  string
	ChartDir  string

	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	EmailTo       []string
	EmailFromName string

	TelegramBotToken string
	TelegramChatIDs  []int64

	DatabaseURL string
	RedisURL    string

	IntervalMins       int
	NotifyMode         string
	NotifyDedupeMins   int
	MarketMoodOverride string
	HTTPAddr           string
	CORSOrigins        []string
	YahooRatePerSec    float64
	StrategyConfig     string
	OTLPEndpoint       string
	RetentionDays      int

	MCPAuthToken       string
	MCPHTTPAddr        string
	MCPRateLimitPerMin int
}

const (
	NotifyAlways = "always"
	NotifySignal = "signal"
)

func Load() *Config {
	cfg := &Config{
		Pair:               strings.TrimSpace(os.Getenv("PAIR")),
		SMTPUser:           strings.TrimSpace(os.Getenv("SMTP_USER")),
		SMTPPass:           os.Getenv("SMTP_PASS"),
		EmailTo:            splitList(os.Getenv("EMAIL_TO")),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		MarketMoodOverride: strings.TrimSpace(os.Getenv("MARKET_MOOD_OVERRIDE")),
		StrategyConfig:     strings.TrimSpace(os.Getenv("STRATEGY_CONFIG")),
		OTLPEndpoint:       strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if cfg.Pair == "" {
		cfg.Pair = "EURUSD=X"
	}
	cfg.PairLabel = strings.TrimSpace(os.Getenv("PAIR_LABEL"))
	if cfg.PairLabel == "" {
		cfg.PairLabel = LabelForPair(cfg.Pair)
	}

	cfg.Timezone = strings.TrimSpace(os.Getenv("TZ"))
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		log.Warn().Str("tz", cfg.Timezone).Msg("unknown TZ, defaulting to UTC")
		cfg.Timezone = "UTC"
	}

	cfg.ChartDir = strings.TrimSpace(os.Getenv("CHART_DIR"))
	if cfg.ChartDir == "" {
		cfg.ChartDir = "charts"
	}

	cfg.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = "smtp.gmail.com"
	}
	cfg.SMTPPort = 587
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 65536 {
			cfg.SMTPPort = n
		}
	}
	cfg.EmailFromName = strings.TrimSpace(os.Getenv("EMAIL_FROM_NAME"))
	if cfg.EmailFromName == "" {
		cfg.EmailFromName = "Trading Agent"
	}
	if !cfg.EmailConfigured() {
		log.Warn().Msg("SMTP_USER/SMTP_PASS/EMAIL_TO incomplete, email reports disabled")
	}

	for _, raw := range splitList(os.Getenv("TELEGRAM_CHAT_IDS")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warn().Str("chat_id", raw).Msg("ignoring invalid TELEGRAM_CHAT_IDS entry")
			continue
		}
		cfg.TelegramChatIDs = append(cfg.TelegramChatIDs, id)
	}

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, reports will not be persisted")
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, candle cache and notification dedupe disabled")
	}

	cfg.IntervalMins = 15
	if v := strings.TrimSpace(os.Getenv("AGENT_INTERVAL_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IntervalMins = n
		}
	}

	cfg.NotifyMode = strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_MODE")))
	if cfg.NotifyMode == "" {
		cfg.NotifyMode = NotifyAlways
	}
	if cfg.NotifyMode != NotifyAlways && cfg.NotifyMode != NotifySignal {
		log.Warn().Str("notify_mode", cfg.NotifyMode).Msg("unsupported NOTIFY_MODE, defaulting to always")
		cfg.NotifyMode = NotifyAlways
	}

	cfg.NotifyDedupeMins = 240
	if v := strings.TrimSpace(os.Getenv("NOTIFY_DEDUPE_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.NotifyDedupeMins = n
		}
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.CORSOrigins = splitList(os.Getenv("HTTP_CORS_ORIGINS"))

	cfg.YahooRatePerSec = 2
	if v := strings.TrimSpace(os.Getenv("YAHOO_RATE_PER_SEC")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.YahooRatePerSec = n
		}
	}

	cfg.MCPAuthToken = strings.TrimSpace(os.Getenv("MCP_AUTH_TOKEN"))
	cfg.MCPHTTPAddr = strings.TrimSpace(os.Getenv("MCP_HTTP_ADDR"))
	if cfg.MCPHTTPAddr == "" {
		cfg.MCPHTTPAddr = ":8090"
	}
	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	cfg.RetentionDays = 90
	if v := strings.TrimSpace(os.Getenv("REPORT_RETENTION_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RetentionDays = n
		}
	}

	return cfg
}

func (c *Config) EmailConfigured() bool {
	return c.SMTPUser != "" && c.SMTPPass != "" && len(c.EmailTo) > 0
}

func (c *Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && len(c.TelegramChatIDs) > 0
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMins) * time.Minute
}

// Retention is zero when report cleanup is disabled.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) NotifyDedupe() time.Duration {
	return time.Duration(c.NotifyDedupeMins) * time.Minute
}

// MaskedPassword reveals only the first four characters of SMTP_PASS.
func (c *Config) MaskedPassword() string {
	if c.SMTPPass == "" {
		return ""
	}
	prefix := c.SMTPPass
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return prefix + "********"
}

// LabelForPair turns a Yahoo FX ticker such as "EURUSD=X" into "EUR/USD".
func LabelForPair(pair string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	p = strings.TrimSuffix(p, "=X")
	if len(p) == 6 && isLetters(p) {
		return p[:3] + "/" + p[3:]
	}
	return p
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
