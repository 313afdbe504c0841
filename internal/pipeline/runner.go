package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/telemetry"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transform"
	"github.com/max0ne/fluent-plugin-google-cloud/sink"
	"github.com/max0ne/fluent-plugin-google-cloud/source"
)

type stage struct {
	name     string
	client   transform.Client
	timeout  time.Duration
	attempts int // retries after the first call
	backoff  time.Duration
}

type Runner struct {
	source source.Adapter
	stages []stage
	sinks  []sink.Adapter

	// ackers is the number of ack-aware sinks. An event's checkpoint is
	// released to subscribers once that many acks arrived for it.
	ackers int

	mu      sync.Mutex
	subs    []func(*event.Checkpoint)
	waiting map[*event.Checkpoint]int

	done chan struct{}
	err  error
}

func NewRunner() *Runner {
	return &Runner{waiting: make(map[*event.Checkpoint]int)}
}

// AddSink appends a sink and, when it is ack-aware, binds its acks to the
// runner.
func (r *Runner) AddSink(s sink.Adapter) {
	if aw, ok := s.(sink.AckAware); ok {
		aw.BindAck(r.Ack)
		r.ackers++
	}
	r.sinks = append(r.sinks, s)
}

func (r *Runner) SetSource(s source.Adapter) { r.source = s }

// AddTransformer appends a stage. Each call to the client gets timeout (0 =
// none); a failed call is retried up to attempts more times, sleeping backoff
// in between.
func (r *Runner) AddTransformer(name string, c transform.Client, timeout time.Duration, attempts int, backoff time.Duration) {
	r.stages = append(r.stages, stage{name: name, client: c, timeout: timeout, attempts: attempts, backoff: backoff})
}

func (r *Runner) SubscribeAck(fn func(*event.Checkpoint)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Ack is called by a sink once it has durably handled the event holding cp.
// Subscribers hear about cp only after every ack-aware sink has acked it.
// Acks for checkpoints that are not awaited (unknown, or whose event failed
// in some sink) are dropped.
func (r *Runner) Ack(cp *event.Checkpoint) {
	r.mu.Lock()
	n, ok := r.waiting[cp]
	if !ok {
		r.mu.Unlock()
		return
	}
	if n > 1 {
		r.waiting[cp] = n - 1
		r.mu.Unlock()
		return
	}
	delete(r.waiting, cp)
	r.mu.Unlock()
	r.release(cp)
}

func (r *Runner) release(cp *event.Checkpoint) {
	r.mu.Lock()
	handlers := append([]func(*event.Checkpoint){}, r.subs...)
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(cp)
	}
}

func (r *Runner) await(cp *event.Checkpoint) {
	r.mu.Lock()
	r.waiting[cp] = r.ackers
	r.mu.Unlock()
}

func (r *Runner) abandon(cp *event.Checkpoint) {
	r.mu.Lock()
	delete(r.waiting, cp)
	r.mu.Unlock()
}

/*──────── event routing ───────*/
func (r *Runner) pushEvent(ctx context.Context, ev *event.Event) error {
	for _, st := range r.stages {
		out, err := st.call(ctx, ev)
		if err != nil {
			telemetry.PipelineEvents.WithLabelValues(st.name, "failed").Inc()
			return fmt.Errorf("transform %s: %w", st.name, err)
		}
		telemetry.PipelineEvents.WithLabelValues(st.name, "ok").Inc()
		ev = out
	}
	cp := ev.Checkpoint
	if cp != nil && r.ackers > 0 {
		r.await(cp)
	}
	for _, s := range r.sinks {
		if err := s.Push(ev); err != nil {
			if cp != nil {
				r.abandon(cp)
			}
			telemetry.PipelineEvents.WithLabelValues("sink", "failed").Inc()
			return err
		}
	}
	telemetry.PipelineEvents.WithLabelValues("sink", "ok").Inc()
	if cp != nil && r.ackers == 0 {
		r.release(cp)
	}
	return nil
}

func (st stage) call(ctx context.Context, ev *event.Event) (*event.Event, error) {
	var lastErr error
	for try := 0; try <= st.attempts; try++ {
		if try > 0 && st.backoff > 0 {
			select {
			case <-time.After(st.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		out, err := st.once(ctx, ev)
		if err == nil {
			return out, nil
		}
		lastErr = err
		logging.L().Warn("transform stage failed", "stage", st.name, "try", try+1, "err", err)
	}
	return nil, lastErr
}

func (st stage) once(ctx context.Context, ev *event.Event) (*event.Event, error) {
	if st.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}
	return st.client.Transform(ctx, ev)
}

// Start runs the source in the background. Wait reports how it ended.
func (r *Runner) Start(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		err := r.source.Run(ctx, func(ev *event.Event) error { return r.pushEvent(ctx, ev) })
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		r.err = err
		if err != nil {
			logging.L().Error("pipeline source stopped", "err", err)
		} else {
			logging.L().Info("pipeline source finished")
		}
	}()
	return nil
}

// Done is closed when the source stops. It is nil before Start.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Wait blocks until the source stops and returns its error.
func (r *Runner) Wait() error {
	if r.done == nil {
		return errors.New("runner: not started")
	}
	<-r.done
	return r.err
}

// Close releases sinks, stages and the source, in that order, so buffered
// sink data is flushed and acked before the source shuts down.
func (r *Runner) Close() error {
	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	for _, st := range r.stages {
		errs = append(errs, st.client.Close())
	}
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	return errors.Join(errs...)
}
