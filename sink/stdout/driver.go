// Package stdout prints every event as one JSON envelope line.
package stdout

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/sink"
)

/* ────────── config ────────── */
type Config struct {
	Writer       io.Writer // defaults to os.Stdout
	DelayMS      int       // artificial per-event delay
	PrintCounter bool      // prepend seq#
	BatchSize    int       // 0 = ack every event
	FlushMS      int       // 0 = disabled
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
	ack sink.EmitFn

	wmu sync.Mutex // serialises writes
	seq atomic.Uint64

	mu      sync.Mutex // guards pending+timer
	pending []*event.Checkpoint
	timer   *time.Timer // nil → no timer armed
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Writer == nil {
		c.Writer = os.Stdout
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(ev *event.Event) error {
	if d.cfg.DelayMS > 0 {
		time.Sleep(time.Duration(d.cfg.DelayMS) * time.Millisecond)
	}

	line, err := event.EncodeEnvelope(ev)
	if err != nil {
		return fmt.Errorf("stdout-sink: %w", err)
	}
	d.wmu.Lock()
	if d.cfg.PrintCounter {
		_, err = fmt.Fprintf(d.cfg.Writer, "[%06d] %s\n", d.seq.Add(1), line)
	} else {
		_, err = fmt.Fprintf(d.cfg.Writer, "%s\n", line)
	}
	d.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("stdout-sink: %w", err)
	}
	if ev.Checkpoint == nil {
		return nil
	}

	d.mu.Lock()
	d.pending = append(d.pending, ev.Checkpoint)

	/* 1. flush on batch size */
	if d.cfg.BatchSize <= 1 || len(d.pending) >= d.cfg.BatchSize {
		d.flushLocked()
		d.mu.Unlock()
		return nil
	}

	/* 2. (re)-arm the one-shot timer if needed */
	if d.cfg.FlushMS > 0 && d.timer == nil {
		d.timer = time.AfterFunc(
			time.Duration(d.cfg.FlushMS)*time.Millisecond,
			d.timerFlush,
		)
	}
	d.mu.Unlock()
	return nil
}

func (d *driver) Close() error {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
	return nil
}

/* ────────── sink.AckAware ────────── */
func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

/* ────────── internals ────────── */

// called by the background timer goroutine
func (d *driver) timerFlush() {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
}

// must be called with d.mu *held*
func (d *driver) flushLocked() {
	if len(d.pending) == 0 || d.ack == nil {
		d.pending = d.pending[:0]
		d.stopTimerLocked()
		return
	}
	for _, cp := range d.pending {
		d.ack(cp)
	}
	d.pending = d.pending[:0]
	d.stopTimerLocked() // re-arm on next Push if needed
}

func (d *driver) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
