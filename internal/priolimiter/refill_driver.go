package priolimiter

import "time"

// RefillDriver is a background goroutine that calls Limiter.Refill on a
// fixed tick. It is not required for correctness — a request that
// observes next_refill_time <= now refills in-line (see reserve) — but it
// is required for liveness when no requests arrive: without it, a
// quiescent High would never donate its residual to Medium/Low, pinning
// their budgets stale.
//
// Reference: the original ties refill to Instant::now_coarse() sampled
// both by a recurring scheduler task and ad-hoc from request_imp!; this
// is the Go rendering of the recurring half.
type RefillDriver struct {
	limiter *Limiter
	ticker  *time.Ticker
	done    chan struct{}
}

// StartRefillDriver starts a RefillDriver ticking every period (defaults
// to l's configured refill period when period <= 0) and returns it. Call
// Stop to terminate the goroutine.
func StartRefillDriver(l *Limiter, period time.Duration) *RefillDriver {
	if period <= 0 {
		period = l.refillPeriod
	}
	d := &RefillDriver{
		limiter: l,
		ticker:  time.NewTicker(period),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *RefillDriver) run() {
	for {
		select {
		case now := <-d.ticker.C:
			d.limiter.Refill(now)
		case <-d.done:
			return
		}
	}
}

// Stop terminates the driver's goroutine. Safe to call once. Waiters
// already sleeping on a computed deadline are unaffected: they own a
// reference to the limiter via their wait duration, not the driver, and
// the limiter outlives the driver.
func (d *RefillDriver) Stop() {
	d.ticker.Stop()
	close(d.done)
}
