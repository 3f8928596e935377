package sim

import (
	"sync"
	"time"

	"supplysim/internal/pkg/clock"
)

// periodic re-arms fn every period on the shared clock. The next tick is
// scheduled only after fn returns, so a behaviour never overlaps itself.
type periodic struct {
	clk    clock.Clock
	period time.Duration
	fn     func()

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

func startPeriodic(clk clock.Clock, period time.Duration, fn func()) *periodic {
	p := &periodic{clk: clk, period: period, fn: fn}
	p.arm()
	return p
}

func (p *periodic) arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.timer = p.clk.Schedule(p.period, p.tick)
}

func (p *periodic) tick() {
	p.fn()
	p.arm()
}

func (p *periodic) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.timer != nil {
		p.timer.Cancel()
	}
}
