package clock

import (
	"time"

	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

type systemClock struct{}

// NewSystemClock returns the wall clock
func NewSystemClock() outbound.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTicker(d time.Duration) outbound.Ticker {
	return &systemTicker{ticker: time.NewTicker(d)}
}

type systemTicker struct {
	ticker *time.Ticker
}

func (t *systemTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *systemTicker) Stop() {
	t.ticker.Stop()
}
