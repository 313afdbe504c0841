package kafka

import (
	"sync"
	"time"
)

// tokenBucket bounds the number of consumed records that are not yet
// acknowledged downstream. Tokens come back through release (on ack) and a
// slow periodic refill so a lost ack cannot stall a partition forever.
type tokenBucket struct {
	capacity int64
	refill   int64

	mu     sync.Mutex
	cond   *sync.Cond
	tokens int64
	closed bool
	stop   chan struct{}
}

func newTokenBucket(capacity, refill int64, every time.Duration) *tokenBucket {
	b := &tokenBucket{
		capacity: capacity,
		refill:   refill,
		tokens:   capacity,
		stop:     make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	if refill > 0 && every > 0 {
		go b.refillLoop(every)
	}
	return b
}

func (b *tokenBucket) refillLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			b.release(b.refill)
		}
	}
}

// tryAcquire takes a token without blocking.
func (b *tokenBucket) tryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (b *tokenBucket) release(n int64) {
	b.mu.Lock()
	b.tokens = min(b.tokens+n, b.capacity)
	b.mu.Unlock()
	b.cond.Broadcast()
}

func (b *tokenBucket) available() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

func (b *tokenBucket) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()
	b.cond.Broadcast()
}
