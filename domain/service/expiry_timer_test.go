package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	pollGap = 5 * time.Millisecond
)

type timerProbe struct {
	ticks   atomic.Int32
	expires atomic.Int32
}

func newTestTimer(t *testing.T, clock *fakeClock) (*ExpiryTimer, *timerProbe) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	probe := &timerProbe{}
	timer := NewExpiryTimer(ctx, clock,
		func(string) { probe.ticks.Add(1) },
		func() { probe.expires.Add(1) },
	)
	t.Cleanup(timer.Detach)
	return timer, probe
}

func TestExpiryTimer_NilExpiryNeverExpires(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	timer.Attach(nil)

	assert.Nil(t, timer.RemainingDisplay())
	assert.Equal(t, 0, clock.ActiveTickers())

	clock.Advance(1000 * time.Hour)

	assert.False(t, timer.HasExpired())
	assert.Nil(t, timer.RemainingDisplay())
	assert.Equal(t, int32(0), probe.expires.Load())
}

func TestExpiryTimer_PastExpiryFiresSynchronously(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	timer.Attach(timePtr(testEpoch.Add(-time.Minute)))

	assert.True(t, timer.HasExpired())
	assert.Nil(t, timer.RemainingDisplay())
	assert.Equal(t, int32(1), probe.expires.Load())
	assert.Equal(t, 0, clock.ActiveTickers())
}

func TestExpiryTimer_ExpiryAtNowCountsAsPast(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	timer.Attach(timePtr(testEpoch))

	assert.True(t, timer.HasExpired())
	assert.Equal(t, int32(1), probe.expires.Load())
}

func TestExpiryTimer_CountsDownAndExpiresOnce(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	timer.Attach(timePtr(testEpoch.Add(5 * time.Second)))

	require.NotNil(t, timer.RemainingDisplay())
	assert.Equal(t, "00:00:05", *timer.RemainingDisplay())
	assert.False(t, timer.HasExpired())

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		d := timer.RemainingDisplay()
		return d != nil && *d == "00:00:04"
	}, waitFor, pollGap)

	clock.Advance(4 * time.Second)
	assert.Eventually(t, timer.HasExpired, waitFor, pollGap)
	assert.Nil(t, timer.RemainingDisplay())
	assert.Equal(t, int32(1), probe.expires.Load())

	assert.Eventually(t, func() bool { return clock.ActiveTickers() == 0 }, waitFor, pollGap)

	clock.Advance(time.Hour)
	assert.Equal(t, int32(1), probe.expires.Load())
	assert.Nil(t, timer.RemainingDisplay())
}

func TestExpiryTimer_DisplayTruncatesSubSeconds(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, _ := newTestTimer(t, clock)

	timer.Attach(timePtr(testEpoch.Add(time.Hour + time.Minute + time.Second + 900*time.Millisecond)))

	require.NotNil(t, timer.RemainingDisplay())
	assert.Equal(t, "01:01:01", *timer.RemainingDisplay())
}

func TestExpiryTimer_ReattachCancelsPreviousCountdown(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	timer.Attach(timePtr(testEpoch.Add(10 * time.Second)))
	timer.Attach(timePtr(testEpoch.Add(time.Hour)))

	assert.Eventually(t, func() bool { return clock.ActiveTickers() == 1 }, waitFor, pollGap)

	clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool {
		d := timer.RemainingDisplay()
		return d != nil && *d == "00:59:50"
	}, waitFor, pollGap)

	assert.False(t, timer.HasExpired())
	assert.Equal(t, int32(0), probe.expires.Load())
}

func TestExpiryTimer_ReattachSameInstantKeepsExpired(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	expiresAt := testEpoch.Add(2 * time.Second)
	timer.Attach(&expiresAt)
	clock.Advance(3 * time.Second)
	require.Eventually(t, timer.HasExpired, waitFor, pollGap)

	// the next poll still reports the same grant
	timer.Attach(timePtr(expiresAt))
	assert.True(t, timer.HasExpired())
	assert.Nil(t, timer.RemainingDisplay())
	assert.Equal(t, int32(1), probe.expires.Load())

	// a new, later grant starts over
	timer.Attach(timePtr(clock.Now().Add(time.Minute)))
	assert.False(t, timer.HasExpired())
	require.NotNil(t, timer.RemainingDisplay())
	assert.Equal(t, "00:01:00", *timer.RemainingDisplay())
}

func TestExpiryTimer_DetachIsIdempotent(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	timer.Attach(timePtr(testEpoch.Add(3 * time.Second)))
	timer.Detach()
	timer.Detach()
	timer.Detach()

	assert.Eventually(t, func() bool { return clock.ActiveTickers() == 0 }, waitFor, pollGap)

	clock.Advance(time.Minute)
	assert.False(t, timer.HasExpired())
	assert.Nil(t, timer.RemainingDisplay())
	assert.Nil(t, timer.ExpiresAt())
	assert.Equal(t, int32(0), probe.expires.Load())
}

func TestExpiryTimer_TicksNotifyListener(t *testing.T) {
	clock := newFakeClock(testEpoch)
	timer, probe := newTestTimer(t, clock)

	timer.Attach(timePtr(testEpoch.Add(time.Minute)))

	for i := 0; i < 3; i++ {
		want := int32(i + 1)
		clock.Advance(time.Second)
		assert.Eventually(t, func() bool { return probe.ticks.Load() == want }, waitFor, pollGap)
	}
}

func TestExpiryTimer_ParentCancellationStopsTicking(t *testing.T) {
	clock := newFakeClock(testEpoch)
	ctx, cancel := context.WithCancel(context.Background())

	var expires atomic.Int32
	timer := NewExpiryTimer(ctx, clock, nil, func() { expires.Add(1) })
	timer.Attach(timePtr(testEpoch.Add(2 * time.Second)))

	cancel()
	assert.Eventually(t, func() bool { return clock.ActiveTickers() == 0 }, waitFor, pollGap)

	clock.Advance(time.Minute)
	assert.Equal(t, int32(0), expires.Load())
}
