package sampler

import "time"

// Ticker is a stoppable periodic trigger. Stop must be synchronous: no tick is
// delivered after it returns.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(period time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker wraps time.Ticker. Its one-slot channel drops ticks for a
// slow receiver instead of queueing them.
func NewTimeTicker(period time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(period)}
}

func (t *timeTicker) C() <-chan time.Time {
	return t.t.C
}

func (t *timeTicker) Stop() {
	t.t.Stop()
}
