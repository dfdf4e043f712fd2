package report

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"trading-agent/internal/domain"
)

// TimeLayout is used for every timestamp in the block and subject.
const TimeLayout = "2006-01-02 15:04:05"

// InlineOrder is the order of the inline chart images in the HTML body.
var InlineOrder = []string{"h1", "h4", "d1", "m15", "m5"}

type field struct {
	key   string
	value string
}

// Block renders the report as key=value lines in a fixed order. Empty values
// are omitted.
func Block(r *domain.Report) string {
	if r.Type == domain.ReportError {
		return ErrorBody(r.Error)
	}
	fields := []field{
		{"TYPE", string(r.Type)},
		{"TimeUTC", stamp(r.GeneratedAt)},
		{"MarketMood", r.Mood},
		{"Side", string(r.Side)},
		{"Timeframes", TrendsLine(r.Trends)},
		{"Entry", Price(r.Entry)},
		{"SL", Price(r.SL)},
		{"TP", Price(r.TP)},
		{"Confidence", confidence(r.Confidence)},
		{"Price", Price(r.Levels.Price)},
		{"DayHigh", Price(r.Levels.DayHigh)},
		{"DayLow", Price(r.Levels.DayLow)},
		{"H1High", Price(r.Levels.H1High)},
		{"H1Low", Price(r.Levels.H1Low)},
		{"High24h", Price(r.Levels.High24h)},
		{"Low24h", Price(r.Levels.Low24h)},
		{"VIX", fixed(r.Levels.VIXClose, 2)},
		{"Regime", string(r.Regime.Bias)},
		{"RegimeReasons", strings.Join(r.Regime.Reasons, "; ")},
		{"M15Setup", SetupLine(r.Setup)},
		{"Reasons.tech", r.TechReason},
		{"Reasons.fund", r.FundReason},
		{"NextSteps", r.NextSteps},
		{"job_start_utc", stamp(r.JobStart)},
		{"analysis_done_utc", stamp(r.AnalysisDone)},
		{"email_sent_utc", stamp(r.SentAt)},
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		lines = append(lines, f.key+"="+f.value)
	}
	return strings.Join(lines, "\n")
}

// Subject is the one-line summary used as mail subject.
func Subject(r *domain.Report) string {
	if r.Type == domain.ReportError {
		return ErrorSubject(r.Label, r.GeneratedAt)
	}
	return fmt.Sprintf("%s %s: %s (%d%%) – %s | Px=%s | DHi=%s / DLo=%s | %s",
		r.Label, r.Type, r.Side, r.Confidence, r.Mood,
		Price(r.Levels.Price), Price(r.Levels.DayHigh), Price(r.Levels.DayLow),
		stamp(r.GeneratedAt))
}

// HTML wraps the block in a preformatted section followed by the inline images
// that are present in inline, referenced by Content-ID.
func HTML(block string, inline map[string][]byte) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	b.WriteString(`<pre style="font-family:Menlo,Consolas,monospace">`)
	b.WriteString(html.EscapeString(block))
	b.WriteString("</pre>\n")

	var imgs []string
	for _, cid := range InlineOrder {
		if _, ok := inline[cid]; ok {
			imgs = append(imgs, fmt.Sprintf(`<img src="cid:%s" alt="%s">`, cid, cid))
		}
	}
	if len(imgs) > 0 {
		b.WriteString("<hr>\n")
		b.WriteString(strings.Join(imgs, "<br>\n"))
		b.WriteString("\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func ErrorSubject(label string, at time.Time) string {
	return fmt.Sprintf("[ERROR] %s Agent – %s UTC", label, at.UTC().Format(TimeLayout))
}

func ErrorBody(msg string) string {
	return "Error:\n" + msg
}

// TrendsLine lists the trend of every timeframe.
func TrendsLine(t domain.Trends) string {
	if t == (domain.Trends{}) {
		return ""
	}
	return fmt.Sprintf("Trend(W1)=%s | Trend(D1)=%s | Trend(H4)=%s | Trend(H1)=%s | Trend(M15)=%s",
		t.W1, t.D1, t.H4, t.H1, t.M15)
}

// SetupLine summarises the M15 entry decision.
func SetupLine(s domain.Setup) string {
	if s.Action == "" {
		return ""
	}
	if s.Entry == nil || s.SL == nil || s.TP == nil {
		return fmt.Sprintf("%s (%s)", s.Action, s.Note)
	}
	return fmt.Sprintf("%s entry=%s sl=%s tp=%s (%s)", s.Action, Price(*s.Entry), Price(*s.SL), Price(*s.TP), s.Note)
}

// Price formats a price with five decimals; NaN renders as "nan".
func Price(v float64) string {
	return fixed(v, 5)
}

func fixed(v float64, places int) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.*f", places, v)
}

func confidence(c int) string {
	if c == 0 {
		return ""
	}
	return fmt.Sprintf("%d", c)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}
