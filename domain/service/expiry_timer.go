package service

import (
	"context"
	"sync"
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const countdownTick = time.Second

// ExpiryTimer counts down a single grant and fires one expiry event when it elapses.
// Every Attach bumps a generation; ticks from an older generation are ignored, so at
// most one countdown is live for the grant at any time.
type ExpiryTimer struct {
	clock    outbound.Clock
	parent   context.Context
	onTick   func(display string)
	onExpire func()

	mu        sync.Mutex
	gen       uint64
	attached  bool
	expiresAt *time.Time
	remaining *string
	expired   bool
	cancel    context.CancelFunc
}

// NewExpiryTimer creates a detached timer. parent bounds the lifetime of every countdown.
func NewExpiryTimer(parent context.Context, clock outbound.Clock, onTick func(string), onExpire func()) *ExpiryTimer {
	if parent == nil {
		parent = context.Background()
	}
	return &ExpiryTimer{
		clock:    clock,
		parent:   parent,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Attach starts counting down to expiresAt, cancelling any previous countdown first.
// A nil expiresAt never expires; a past one expires synchronously.
func (t *ExpiryTimer) Attach(expiresAt *time.Time) {
	t.mu.Lock()

	if t.attached && sameInstant(t.expiresAt, expiresAt) {
		t.mu.Unlock()
		return
	}

	t.cancelLocked()
	t.attached = true
	t.expired = false
	t.remaining = nil
	t.expiresAt = nil

	if expiresAt == nil {
		t.mu.Unlock()
		return
	}

	at := *expiresAt
	t.expiresAt = &at

	remaining := at.Sub(t.clock.Now())
	if remaining <= 0 {
		t.expired = true
		onExpire := t.onExpire
		t.mu.Unlock()

		if onExpire != nil {
			onExpire()
		}
		return
	}

	display := model.FormatRemaining(remaining)
	t.remaining = &display

	ctx, cancel := context.WithCancel(t.parent)
	t.cancel = cancel
	ticker := t.clock.NewTicker(countdownTick)
	gen := t.gen
	t.mu.Unlock()

	go t.run(ctx, gen, ticker)
}

// Detach stops the countdown and forgets the grant. Safe to call any number of times.
func (t *ExpiryTimer) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.attached = false
	t.expiresAt = nil
	t.remaining = nil
	t.expired = false
}

// HasExpired reports whether the expiry event fired for the attached grant
func (t *ExpiryTimer) HasExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// RemainingDisplay returns the last computed HH:MM:SS, nil when nothing is counting down
func (t *ExpiryTimer) RemainingDisplay() *string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.remaining == nil {
		return nil
	}
	display := *t.remaining
	return &display
}

// ExpiresAt returns the attached expiry, nil when none
func (t *ExpiryTimer) ExpiresAt() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.expiresAt == nil {
		return nil
	}
	at := *t.expiresAt
	return &at
}

func (t *ExpiryTimer) run(ctx context.Context, gen uint64, ticker outbound.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if done := t.tick(gen); done {
				return
			}
		}
	}
}

// tick recomputes the countdown; returns true once the countdown is over or superseded
func (t *ExpiryTimer) tick(gen uint64) bool {
	t.mu.Lock()

	if gen != t.gen || t.expiresAt == nil || t.expired {
		t.mu.Unlock()
		return true
	}

	remaining := t.expiresAt.Sub(t.clock.Now())
	if remaining <= 0 {
		t.expired = true
		t.remaining = nil
		t.cancelLocked()
		onExpire := t.onExpire
		t.mu.Unlock()

		if onExpire != nil {
			onExpire()
		}
		return true
	}

	display := model.FormatRemaining(remaining)
	t.remaining = &display
	onTick := t.onTick
	t.mu.Unlock()

	if onTick != nil {
		onTick(display)
	}
	return false
}

func (t *ExpiryTimer) cancelLocked() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
