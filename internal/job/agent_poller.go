package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trading-agent/internal/service"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type AgentRunner interface {
	AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error)
}

// AgentPoller runs the analysis immediately and then on every tick. A tick
// that arrives while a run is still in flight is skipped.
type AgentPoller struct {
	tracer   trace.Tracer
	agent    AgentRunner
	interval time.Duration
	opts     service.RunOptions

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewAgentPoller(tracer trace.Tracer, agent AgentRunner, interval time.Duration, opts service.RunOptions) *AgentPoller {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &AgentPoller{
		tracer:   tracer,
		agent:    agent,
		interval: interval,
		opts:     opts,
	}
}

// Start blocks until ctx is cancelled and the in-flight run has returned.
func (p *AgentPoller) Start(ctx context.Context) {
	if p.agent == nil {
		log.Warn().Msg("Agent poller disabled: no agent service")
		<-ctx.Done()
		return
	}

	log.Info().Dur("interval", p.interval).Msg("Agent poller starting...")
	p.trigger(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			log.Info().Msg("Agent poller stopped")
			return
		case <-ticker.C:
			p.trigger(ctx)
		}
	}
}

// trigger starts a run unless one is in flight and reports whether it did.
func (p *AgentPoller) trigger(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		log.Warn().Msg("previous analysis still running, skipping tick")
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		p.run(ctx)
	}()
	return true
}

func (p *AgentPoller) run(ctx context.Context) {
	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, "agent-poller.run")
		defer span.End()
	}
	if _, err := p.agent.AnalyzeOnce(ctx, p.opts); err != nil {
		log.Error().Err(err).Msg("scheduled analysis failed")
	}
}
