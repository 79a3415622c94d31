package relay

import (
	"sync"
	"time"
)

// breaker sheds relay sends after repeated failures so request handlers do
// not queue up on timeouts behind a dead webhook. Once tripped it stays shut
// for openFor, then admits a single probe send; the probe's outcome decides
// whether the gate closes again or the cool-off restarts.
type breaker struct {
	mu        sync.Mutex
	threshold int
	openFor   time.Duration

	fails     int
	openUntil time.Time
	probing   bool
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	return &breaker{threshold: threshold, openFor: openFor}
}

// TryAcquire reports whether a send may proceed.
func (b *breaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if time.Now().Before(b.openUntil) {
		return false
	}
	if b.fails < b.threshold {
		return true
	}

	// tripped and past the cool-off: one probe at a time
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

func (b *breaker) OnSuccess() {
	b.mu.Lock()
	b.fails = 0
	b.probing = false
	b.openUntil = time.Time{}
	b.mu.Unlock()
}

func (b *breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.probing {
		b.probing = false
		b.openUntil = time.Now().Add(b.openFor)
		return
	}

	b.fails++
	if b.fails >= b.threshold {
		b.openUntil = time.Now().Add(b.openFor)
	}
}
