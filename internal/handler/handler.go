package handler

import (
	"context"
	"net/http"

	"trading-agent/internal/domain"
	"trading-agent/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Agent is the read and trigger surface of the analysis service.
type Agent interface {
	Latest() (service.Snapshot, bool)
	History(ctx context.Context, limit int) ([]domain.Report, error)
	AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error)
}

type Handler struct {
	tracer  trace.Tracer
	agent   Agent
	metrics http.Handler
}

func New(tracer trace.Tracer, agent Agent, metrics http.Handler) *Handler {
	return &Handler{
		tracer:  tracer,
		agent:   agent,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/api/report/latest", h.GetLatestReport)
	r.GET("/api/report/latest/chart", h.GetLatestChart)
	r.GET("/api/report/latest/chart/:tf", h.GetLatestMiniPlot)
	r.GET("/api/reports", h.ListReports)
	r.POST("/api/run", h.Run)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
