package services

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time so the evaluator can be driven in tests
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the monitor relies on
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock uses the system clock
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// FakeClock is a manually advanced clock. Tickers created from it fire
// when Advance or Set moves time past their next deadline.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	created int
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		clock:  c,
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, t)
	c.created++
	return t
}

// TickersCreated returns how many tickers were ever created from this clock
func (c *FakeClock) TickersCreated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// ActiveTickers returns how many tickers have not been stopped
func (c *FakeClock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *FakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	for _, t := range c.tickers {
		fired := false
		for !t.next.After(now) {
			t.next = t.next.Add(t.period)
			fired = true
		}
		if fired {
			// Like time.Ticker, drop ticks for slow receivers
			select {
			case t.ch <- now:
			default:
			}
		}
	}
}

type fakeTicker struct {
	clock  *FakeClock
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	for i, other := range t.clock.tickers {
		if other == t {
			t.clock.tickers = append(t.clock.tickers[:i], t.clock.tickers[i+1:]...)
			return
		}
	}
}
