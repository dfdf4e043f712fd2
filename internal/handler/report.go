package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trading-agent/internal/domain"
	"trading-agent/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const runTimeout = 2 * time.Minute

type reportResponse struct {
	Report  *domain.Report `json:"report"`
	Subject string         `json:"subject"`
	Block   string         `json:"block"`
	Charts  []string       `json:"charts"`
}

func newReportResponse(snap service.Snapshot) reportResponse {
	charts := make([]string, 0, len(snap.Charts))
	for _, tf := range []string{"h1", "h4", "d1", "m15", "m5"} {
		if len(snap.Charts[tf]) > 0 {
			charts = append(charts, tf)
		}
	}
	return reportResponse{
		Report:  snap.Report,
		Subject: snap.Subject,
		Block:   snap.Block,
		Charts:  charts,
	}
}

// GetLatestReport godoc
// @Summary      Get the latest agent report
// @Tags         reports
// @Produce      json
// @Success      200  {object}  reportResponse
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/report/latest [get]
func (h *Handler) GetLatestReport(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-report")
	defer span.End()

	snap, ok := h.agent.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report yet"})
		return
	}
	c.JSON(http.StatusOK, newReportResponse(snap))
}

// GetLatestChart godoc
// @Summary      Get the M15 candle chart of the latest report
// @Tags         reports
// @Produce      png
// @Success      200  {file}  binary
// @Failure      404  {object}  map[string]string
// @Router       /api/report/latest/chart [get]
func (h *Handler) GetLatestChart(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	snap, ok := h.agent.Latest()
	if !ok || len(snap.Chart) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}
	c.Data(http.StatusOK, "image/png", snap.Chart)
}

// GetLatestMiniPlot godoc
// @Summary      Get a close-price mini plot of the latest report
// @Tags         reports
// @Produce      png
// @Param        tf  path  string  true  "Timeframe (h1, h4, d1, m15, m5 or 1h, 4h, 1d, 15m, 5m)"
// @Success      200  {file}  binary
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/report/latest/chart/{tf} [get]
func (h *Handler) GetLatestMiniPlot(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	key, ok := chartKey(c.Param("tf"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported timeframe: " + c.Param("tf")})
		return
	}
	snap, found := h.agent.Latest()
	if !found || len(snap.Charts[key]) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}
	c.Data(http.StatusOK, "image/png", snap.Charts[key])
}

// ListReports godoc
// @Summary      List stored reports
// @Tags         reports
// @Produce      json
// @Param        limit  query  int  false  "Number of reports (default 20, max 200)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/reports [get]
func (h *Handler) ListReports(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-reports")
	defer span.End()

	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	span.SetAttributes(attribute.Int("limit", limit))

	reports, err := h.agent.History(ctx, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Run godoc
// @Summary      Run the analysis now
// @Description  Runs one analysis without sending notifications
// @Tags         reports
// @Produce      json
// @Success      200  {object}  reportResponse
// @Failure      500  {object}  map[string]interface{}
// @Router       /api/run [post]
func (h *Handler) Run(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	snap, err := h.agent.AnalyzeOnce(ctx, service.RunOptions{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": snap.Report})
		return
	}
	c.JSON(http.StatusOK, newReportResponse(snap))
}

// chartKey accepts both h1 and 1h spellings.
func chartKey(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "h1", "1h":
		return "h1", true
	case "h4", "4h":
		return "h4", true
	case "d1", "1d":
		return "d1", true
	case "m15", "15m":
		return "m15", true
	case "m5", "5m":
		return "m5", true
	}
	return "", false
}
