package timesync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTickInterval is the recomputation interval for countdowns. Keeping
// it sub-second makes the displayed value catch up within one tick after a
// UI stall instead of drifting.
const DefaultTickInterval = 100 * time.Millisecond

// Runner drives at most one countdown per key. Starting a countdown for a
// key stops and replaces any countdown already running under that key;
// overlapping countdowns for the same phase are a defect.
type Runner struct {
	clock    clockwork.Clock
	interval time.Duration

	mu     sync.Mutex
	active map[string]chan struct{}
}

// NewRunner creates a countdown runner ticking at DefaultTickInterval.
func NewRunner(clock clockwork.Clock) *Runner {
	return &Runner{
		clock:    clock,
		interval: DefaultTickInterval,
		active:   make(map[string]chan struct{}),
	}
}

// Start begins a countdown toward the absolute expiry instant. onTick is
// invoked with the whole seconds remaining each time the value decreases;
// onExpire fires once when it reaches zero. Remaining time is recomputed
// from expiry on every tick.
func (r *Runner) Start(key string, expiry time.Time, onTick func(remaining int), onExpire func()) {
	stop := r.replace(key)

	go func() {
		ticker := r.clock.NewTicker(r.interval)
		defer ticker.Stop()

		last := -1
		emit := func() bool {
			remaining := Remaining(expiry, r.clock.Now())
			if last == -1 || remaining < last {
				last = remaining
				if onTick != nil {
					onTick(remaining)
				}
			}
			if remaining == 0 {
				r.clear(key, stop)
				if onExpire != nil {
					onExpire()
				}
				return true
			}
			return false
		}

		if emit() {
			return
		}
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				if emit() {
					return
				}
			}
		}
	}()
}

// StartFallback begins a decrement-from-duration countdown for when no valid
// expiry timestamp is available. Compatibility path only: it offers no drift
// guarantee.
func (r *Runner) StartFallback(key string, seconds int, onTick func(remaining int), onExpire func()) {
	stop := r.replace(key)

	go func() {
		ticker := r.clock.NewTicker(time.Second)
		defer ticker.Stop()

		remaining := seconds
		if onTick != nil {
			onTick(remaining)
		}
		for remaining > 0 {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				remaining--
				if onTick != nil {
					onTick(remaining)
				}
			}
		}
		r.clear(key, stop)
		if onExpire != nil {
			onExpire()
		}
	}()
}

// Stop cancels the countdown for key, if any.
func (r *Runner) Stop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.active[key]; ok {
		close(stop)
		delete(r.active, key)
	}
}

// StopAll cancels every running countdown.
func (r *Runner) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, stop := range r.active {
		close(stop)
		delete(r.active, key)
	}
}

// replace atomically swaps in a fresh stop channel for key, cancelling any
// countdown already running under it.
func (r *Runner) replace(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.active[key]; ok {
		close(prev)
	}
	stop := make(chan struct{})
	r.active[key] = stop
	return stop
}

// clear removes key only if it still maps to the given stop channel, so an
// expiring countdown never unregisters its replacement.
func (r *Runner) clear(key string, stop chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.active[key]; ok && cur == stop {
		delete(r.active, key)
	}
}
