package kafka

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errTrackerClosed = errors.New("kafka-source: commit tracker closed")

// commitTracker caps how many records may be in flight between consumption
// and ack, and paces offset commits so the broker sees at most one commit per
// interval.
type commitTracker struct {
	limit    int
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	cond       *sync.Cond
	inflight   int
	lastCommit time.Time
	closed     bool
}

func newCommitTracker(limit int, interval time.Duration) *commitTracker {
	t := &commitTracker{limit: limit, interval: interval, now: time.Now}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// track reserves a slot for one record, blocking while limit records are
// already in flight. The returned resolve func frees the slot and reports
// whether a commit is due; it is safe to call more than once.
func (t *commitTracker) track(ctx context.Context) (resolve func() bool, err error) {
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.limit > 0 && t.inflight >= t.limit && !t.closed && ctx.Err() == nil {
		t.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.closed {
		return nil, errTrackerClosed
	}
	t.inflight++

	var once sync.Once
	return func() bool {
		due := false
		once.Do(func() { due = t.resolve() })
		return due
	}, nil
}

func (t *commitTracker) resolve() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = max(t.inflight-1, 0)
	t.cond.Broadcast()

	now := t.now()
	if now.Sub(t.lastCommit) >= t.interval {
		t.lastCommit = now
		return true
	}
	return false
}

func (t *commitTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight
}

// reset drops every in-flight slot, used when partitions are revoked.
func (t *commitTracker) reset() {
	t.mu.Lock()
	t.inflight = 0
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *commitTracker) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

type partitionKey struct {
	topic     string
	partition int32
}

// offsetWindow tracks, per partition, the offsets handed downstream and not
// yet acked. Acks may arrive in any order; only the contiguous acked prefix
// is ever reported as committable.
type offsetWindow struct {
	mu    sync.Mutex
	parts map[partitionKey]*partitionOffsets
}

type partitionOffsets struct {
	inflight []int64 // consumption order, ascending
	acked    map[int64]bool
}

func newOffsetWindow() *offsetWindow {
	return &offsetWindow{parts: make(map[partitionKey]*partitionOffsets)}
}

func (w *offsetWindow) track(topic string, partition int32, offset int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := partitionKey{topic, partition}
	p := w.parts[k]
	if p == nil {
		p = &partitionOffsets{acked: make(map[int64]bool)}
		w.parts[k] = p
	}
	p.inflight = append(p.inflight, offset)
}

// ack records offset as done. When this moves the low watermark, next is the
// offset to mark on the session (one past the last contiguous ack).
func (w *offsetWindow) ack(topic string, partition int32, offset int64) (next int64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.parts[partitionKey{topic, partition}]
	if p == nil {
		return 0, false
	}
	p.acked[offset] = true

	n := 0
	for n < len(p.inflight) && p.acked[p.inflight[n]] {
		delete(p.acked, p.inflight[n])
		next, ok = p.inflight[n]+1, true
		n++
	}
	p.inflight = p.inflight[n:]
	return next, ok
}

func (w *offsetWindow) reset() {
	w.mu.Lock()
	w.parts = make(map[partitionKey]*partitionOffsets)
	w.mu.Unlock()
}
