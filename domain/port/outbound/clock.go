package outbound

import "time"

// Clock abstracts wall-clock time so countdowns and polling can run on a simulated clock
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
