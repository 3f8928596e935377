package clock

import (
	"sync"
	"time"
)

// Clock abstracts wall time and deadline scheduling so that protocol timeouts
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	// Schedule runs fn once after d has elapsed. The returned Timer may be
	// cancelled; cancelling after the callback has fired is a no-op.
	Schedule(d time.Duration, fn func()) Timer
}

// Timer is a handle to a pending callback.
type Timer interface {
	// Cancel stops the callback if it has not fired yet. Idempotent.
	Cancel()
}

type RealClock struct{}

func NewRealClock() Clock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Schedule(d time.Duration, fn func()) Timer {
	return &realTimer{timer: time.AfterFunc(d, fn)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) Cancel() {
	t.timer.Stop()
}

// FakeClock only moves when Advance or Set is called. Due callbacks run
// synchronously on the advancing goroutine, earliest deadline first, so tests
// observe timer effects without sleeping.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	nextSeq int
	timers  []*fakeTimer
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) Schedule(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{
		clk:      c,
		deadline: c.current.Add(d),
		seq:      c.nextSeq,
		fn:       fn,
	}
	c.nextSeq++
	c.timers = append(c.timers, t)
	return t
}

// Set jumps the clock without firing anything. Use it to arrange a start time;
// use Advance to elapse protocol deadlines.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls within the window in deadline order (scheduling order breaks ties).
// Callbacks may schedule or cancel further timers.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	for {
		t := c.nextDueLocked(target)
		if t == nil {
			break
		}
		if t.deadline.After(c.current) {
			c.current = t.deadline
		}
		t.fired = true
		fn := t.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.current = target
	c.pruneLocked()
	c.mu.Unlock()
}

func (c *FakeClock) nextDueLocked(until time.Time) *fakeTimer {
	var due *fakeTimer
	for _, t := range c.timers {
		if t.fired || t.cancelled || t.deadline.After(until) {
			continue
		}
		if due == nil || t.deadline.Before(due.deadline) ||
			(t.deadline.Equal(due.deadline) && t.seq < due.seq) {
			due = t
		}
	}
	return due
}

func (c *FakeClock) pruneLocked() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.fired && !t.cancelled {
			live = append(live, t)
		}
	}
	c.timers = live
}

// Pending reports how many timers are scheduled and not yet fired or cancelled.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	clk       *FakeClock
	deadline  time.Time
	seq       int
	fn        func()
	fired     bool
	cancelled bool
}

func (t *fakeTimer) Cancel() {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.fired {
		return
	}
	t.cancelled = true
}
