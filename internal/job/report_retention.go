package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const retentionTick = time.Hour

type ReportPruner interface {
	DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReportRetention deletes stored reports older than the retention window.
type ReportRetention struct {
	tracer    trace.Tracer
	pruner    ReportPruner
	retention time.Duration
	now       func() time.Time
}

func NewReportRetention(tracer trace.Tracer, pruner ReportPruner, retention time.Duration) *ReportRetention {
	return &ReportRetention{
		tracer:    tracer,
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
	}
}

func (j *ReportRetention) Start(ctx context.Context) {
	if j == nil || j.pruner == nil || j.retention <= 0 {
		<-ctx.Done()
		return
	}

	log.Info().Dur("retention", j.retention).Msg("Report retention starting...")
	ticker := time.NewTicker(retentionTick)
	defer ticker.Stop()

	j.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Report retention stopped")
			return
		case <-ticker.C:
			j.runCleanup(ctx)
		}
	}
}

func (j *ReportRetention) runCleanup(ctx context.Context) {
	if j.tracer != nil {
		_, span := j.tracer.Start(ctx, "report-retention.cleanup")
		defer span.End()
	}
	deleted, err := j.pruner.DeleteReportsBefore(ctx, j.now().Add(-j.retention))
	if err != nil {
		log.Error().Err(err).Msg("report cleanup error")
		return
	}
	if deleted > 0 {
		log.Info().Int64("rows", deleted).Msg("report cleanup removed old reports")
	}
}
