package findly

import (
	"context"
	"sync"
	"time"
)

// Poller repeatedly triggers a refresh callback at a fixed interval while a
// view is active. It is a two-state machine (idle/active): Start binds a
// callback and begins the cycle, Stop tears it down.
//
// Two properties matter for correctness:
//
//   - Refreshes never overlap. A tick that fires while the previous refresh
//     is still running is skipped, not queued.
//   - Stop is synchronous. Once Stop returns, no refresh call will start or
//     be running, so a dangling timer can never write into the store of a
//     conversation the user navigated away from. The refresh context is
//     cancelled so an in-flight fetch aborts promptly rather than running out
//     its timeout.
//
// Start on an active poller rebinds it: the previous cycle is cancelled first
// and its timer does not leak.
type Poller struct {
	interval time.Duration

	mu     sync.Mutex
	gen    int
	cancel context.CancelFunc

	// runMu is held for the duration of each refresh call; Stop acquires it
	// to wait out an in-flight refresh.
	runMu sync.Mutex
}

// NewPoller creates an idle poller with the given fixed interval.
func NewPoller(interval time.Duration) *Poller {
	return &Poller{interval: interval}
}

// Start transitions idle→active and begins the tick cycle. If the poller is
// already active it is stopped first, so rebinding to a new target never
// leaks the previous timer.
func (p *Poller) Start(refresh func(ctx context.Context)) {
	p.Stop()

	p.mu.Lock()
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.loop(ctx, gen, refresh)
}

// Stop transitions active→idle. It cancels the pending timer and refresh
// context, then waits for any in-flight refresh to return. Calling Stop on
// an idle poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.mu.Unlock()

	p.drain()
}

// drain blocks until any in-flight refresh has returned.
func (p *Poller) drain() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
}

// Active reports whether the poller is in the active state.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, gen int, refresh func(ctx context.Context)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen, refresh)
			// Drop the one tick the ticker may have buffered while the
			// refresh ran; a slow refresh skips ticks instead of queuing
			// a burst behind itself.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context, gen int, refresh func(ctx context.Context)) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	current := p.gen
	p.mu.Unlock()
	if gen != current {
		// Stopped or rebound after this tick was dispatched.
		return
	}

	refresh(ctx)
}
