package app

import (
	"sync"
	"time"
)

// DefaultSessionSeconds is the length of a session in clock units.
const DefaultSessionSeconds = 120

// Ticker is the subset of time.Ticker the clock needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// SessionClock counts down a session one unit at a time. At most one countdown is
// active per clock; starting a new one cancels the previous.
type SessionClock struct {
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	now       func() time.Time

	mu   sync.Mutex
	stop chan struct{}
}

// NewSessionClock returns a clock ticking every interval.
func NewSessionClock(interval time.Duration) *SessionClock {
	return NewSessionClockWithTicker(interval, func(d time.Duration) Ticker {
		return timeTicker{t: time.NewTicker(d)}
	}, time.Now)
}

// NewSessionClockWithTicker lets tests drive ticks by hand.
func NewSessionClockWithTicker(interval time.Duration, newTicker func(time.Duration) Ticker, now func() time.Time) *SessionClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &SessionClock{interval: interval, newTicker: newTicker, now: now}
}

// Start begins a countdown of duration units. onTick receives the remaining units after
// every unit elapses; onExpire runs once when the countdown reaches zero. Callbacks run on
// the clock goroutine, never concurrently with each other.
func (c *SessionClock) Start(duration int, onTick func(remaining int), onExpire func()) {
	c.mu.Lock()
	c.stopLocked()
	stop := make(chan struct{})
	c.stop = stop
	start := c.now()
	ticker := c.newTicker(c.interval)
	c.mu.Unlock()

	go c.run(stop, ticker, start, duration, onTick, onExpire)
}

// Stop cancels the active countdown, if any. Safe to call repeatedly.
func (c *SessionClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Active reports whether a countdown is in progress.
func (c *SessionClock) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *SessionClock) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *SessionClock) finished(stop chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == stop {
		c.stop = nil
	}
}

func (c *SessionClock) run(stop chan struct{}, ticker Ticker, start time.Time, duration int, onTick func(int), onExpire func()) {
	defer ticker.Stop()
	elapsed := 0
	for {
		select {
		case <-stop:
			return
		case at := <-ticker.C():
			// a delayed receive may cover several units; catch up so none are lost
			due := int(at.Sub(start) / c.interval)
			if due <= elapsed {
				due = elapsed + 1
			}
			for elapsed < due {
				select {
				case <-stop:
					return
				default:
				}
				elapsed++
				remaining := duration - elapsed
				if onTick != nil {
					onTick(remaining)
				}
				if remaining <= 0 {
					if onExpire != nil {
						onExpire()
					}
					c.finished(stop)
					return
				}
			}
		}
	}
}
