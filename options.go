package ioratelimiter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aalhour/ioratelimiter/internal/logging"
	"github.com/aalhour/ioratelimiter/internal/priolimiter"
)

// Options configures a RateLimiter: zero-value fields are filled in by
// New with the defaults below.
type Options struct {
	// BytesPerSecond is the total I/O flow threshold shared across all
	// priorities. Zero disables rate limiting entirely (every Request
	// returns the full requested amount immediately, except writes of a
	// type mapped to Stop, which still block for the Stop wait).
	BytesPerSecond int64

	// RefillPeriod is the epoch length driving both the token bucket and
	// the budget-update window below. Default 50ms.
	RefillPeriod time.Duration

	// WindowEpochs (N) is how many refills elapse between budget
	// recomputes for Medium/Low. Default 5 (~250ms at the default period).
	WindowEpochs int

	// EnableStatistics opts into the per-(IOType,IOOp) byte counters
	// returned by Statistics(). Disabled by default: the counters are
	// cheap but unused collectors shouldn't pay even that cost.
	EnableStatistics bool

	// Registerer, if non-nil, causes New to also build an
	// internal/metrics.Collector registered against it, wiring the
	// rate_limiter_request_wait_duration_seconds histogram and (when
	// EnableStatistics is set) the io_bytes counter vector's periodic
	// sampler. Nil means no metrics are exported.
	Registerer prometheus.Registerer

	// Logger receives component-prefixed diagnostic output. Defaults to a
	// WARN-level logger writing to stderr; pass logging.Discard to
	// silence it entirely.
	Logger logging.Logger
}

// DefaultOptions returns the calibrated defaults: 50ms refill period, N=5
// budget-update window, statistics and metrics off, rate limiting disabled
// (BytesPerSecond: 0) until the caller opts in via SetIORateLimit or a
// non-zero BytesPerSecond here.
func DefaultOptions() *Options {
	return &Options{
		RefillPeriod: priolimiter.DefaultRefillPeriod,
		WindowEpochs: priolimiter.UpdateBudgetsEveryNEpochs,
	}
}
