package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"trading-agent/internal/service"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestAgentPollerRunsImmediately(t *testing.T) {
	stub := &stubAgent{}
	poller := NewAgentPoller(noop.NewTracerProvider().Tracer("test"), stub, time.Hour, service.RunOptions{Notify: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	eventually(t, func() bool { return atomic.LoadInt32(&stub.calls) > 0 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	if !stub.lastNotify.Load() {
		t.Fatal("expected run options to be passed through")
	}
}

func TestAgentPollerTicks(t *testing.T) {
	stub := &stubAgent{}
	poller := NewAgentPoller(nil, stub, 10*time.Millisecond, service.RunOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Start(ctx)

	eventually(t, func() bool { return atomic.LoadInt32(&stub.calls) >= 3 })
}

func TestAgentPollerSkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	stub := &stubAgent{block: release}
	poller := NewAgentPoller(nil, stub, time.Hour, service.RunOptions{})

	ctx := context.Background()
	if !poller.trigger(ctx) {
		t.Fatal("expected first trigger to start a run")
	}
	if poller.trigger(ctx) {
		t.Fatal("expected second trigger to be skipped while running")
	}
	close(release)
	poller.wg.Wait()

	if !poller.trigger(ctx) {
		t.Fatal("expected trigger to start a run after the previous finished")
	}
	poller.wg.Wait()
	if got := atomic.LoadInt32(&stub.calls); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}
}

func TestAgentPollerLogsErrors(t *testing.T) {
	stub := &stubAgent{err: errors.New("yahoo down")}
	poller := NewAgentPoller(nil, stub, time.Hour, service.RunOptions{})
	poller.run(context.Background())
	if atomic.LoadInt32(&stub.calls) != 1 {
		t.Fatal("expected one call")
	}
}

func TestAgentPollerWithoutAgent(t *testing.T) {
	poller := NewAgentPoller(nil, nil, 0, service.RunOptions{})
	if poller.interval != 15*time.Minute {
		t.Fatalf("expected default interval, got %v", poller.interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poller.Start(ctx)
}

type stubAgent struct {
	calls      int32
	lastNotify atomic.Bool
	block      chan struct{}
	err        error
}

func (s *stubAgent) AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	s.lastNotify.Store(opts.Notify)
	if s.block != nil {
		<-s.block
	}
	return service.Snapshot{}, s.err
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
