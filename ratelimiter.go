package ioratelimiter

import (
	"sync/atomic"
	"time"

	"github.com/aalhour/ioratelimiter/internal/ioenum"
	"github.com/aalhour/ioratelimiter/internal/logging"
	"github.com/aalhour/ioratelimiter/internal/metrics"
	"github.com/aalhour/ioratelimiter/internal/priolimiter"
	"github.com/aalhour/ioratelimiter/internal/registry"
	"github.com/aalhour/ioratelimiter/internal/stats"
)

// stopWait is how long a Stop-priority request sleeps/suspends before
// returning ungranted — a "do not admit" sentinel: a goroutine that
// actually waits this out is effectively parked forever at any reasonable
// process lifetime, without this package needing its own
// blocking-forever primitive.
const stopWait = 1000 * time.Second

// RateLimiter maps an IOType to a priority, dispatches into the priority
// token bucket, and optionally records granted bytes into Stats and the
// wait histogram.
type RateLimiter struct {
	priorityMap [ioenum.COUNT]atomic.Int32

	core      *priolimiter.Limiter
	driver    *priolimiter.RefillDriver
	stats     *stats.Stats
	collector *metrics.Collector
	sampler   *metrics.SampleTask
	logger    logging.Logger
}

// New constructs a RateLimiter from opts (DefaultOptions() when nil) and
// starts its background RefillDriver (and, if opts.EnableStatistics and
// opts.Registerer are both set, its metrics SampleTask). Every IOType
// defaults to High priority. Callers must call Close when done.
func New(opts *Options) *RateLimiter {
	if opts == nil {
		opts = DefaultOptions()
	}
	refillPeriod := opts.RefillPeriod
	if refillPeriod <= 0 {
		refillPeriod = priolimiter.DefaultRefillPeriod
	}
	windowEpochs := opts.WindowEpochs
	if windowEpochs <= 0 {
		windowEpochs = priolimiter.UpdateBudgetsEveryNEpochs
	}
	logger := logging.OrDefault(opts.Logger)

	var collector *metrics.Collector
	var onWait priolimiter.WaitObserver
	if opts.Registerer != nil {
		collector = metrics.NewCollector(opts.Registerer)
		onWait = collector.ObserveWait
	}

	rl := &RateLimiter{
		core:      priolimiter.New(refillPeriod, windowEpochs, logger, onWait),
		collector: collector,
		logger:    logger,
	}
	for i := range rl.priorityMap {
		rl.priorityMap[i].Store(int32(ioenum.High))
	}
	if opts.EnableStatistics {
		rl.stats = stats.New()
		if collector != nil {
			rl.sampler = metrics.StartSampleTask(collector, rl.stats, refillPeriod)
		}
	}
	if opts.BytesPerSecond > 0 {
		rl.core.SetBytesPerSec(opts.BytesPerSecond)
	}
	rl.driver = priolimiter.StartRefillDriver(rl.core, refillPeriod)

	logger.Infof(logging.NSLimiter + "rate limiter started")
	return rl
}

// Close stops the background refill driver and metrics sampler. It does
// not wake goroutines already sleeping in Request; sleepers ride out the
// schedule they computed at request time, and a RateLimiter outliving its
// Close is benign since the state they touch belongs to the limiter, not
// the driver.
func (rl *RateLimiter) Close() {
	rl.driver.Stop()
	rl.sampler.Stop()
	rl.logger.Infof(logging.NSLimiter + "rate limiter stopped")
}

// SetIOPriority updates the priority bucket type routes into. Safe to call
// concurrently with in-flight requests: the store is atomic at the element
// level, so a request observes the old or new priority, never a torn one.
func (rl *RateLimiter) SetIOPriority(ioType ioenum.IOType, priority ioenum.IOPriority) {
	rl.priorityMap[ioType].Store(int32(priority))
}

// GetIOPriority returns the priority currently mapped to ioType.
func (rl *RateLimiter) GetIOPriority(ioType ioenum.IOType) ioenum.IOPriority {
	return ioenum.IOPriority(rl.priorityMap[ioType].Load())
}

// SetIORateLimit sets the total bytes-per-second ceiling shared across all
// priorities. Zero disables rate limiting; any positive value (re)enables
// it, effective within one refill period.
func (rl *RateLimiter) SetIORateLimit(bytesPerSec int64) {
	rl.core.SetBytesPerSec(bytesPerSec)
}

// Statistics returns the Stats handle if EnableStatistics was set at
// construction, or nil otherwise.
func (rl *RateLimiter) Statistics() *stats.Stats {
	return rl.stats
}

// Request synchronously requests bytes worth of I/O at the priority
// mapped to (ioType, op), blocking the calling goroutine until admitted.
// Only writes consult the priority bucket; reads are recorded into Stats
// (if enabled) but never throttled.
func (rl *RateLimiter) Request(ioType ioenum.IOType, op ioenum.IOOp, bytes int64) int64 {
	granted := bytes
	if op == ioenum.Write {
		priority := rl.GetIOPriority(ioType)
		if priority == ioenum.Stop {
			time.Sleep(stopWait)
			granted = 0
		} else {
			granted = rl.core.Request(priority, bytes)
		}
	}
	if rl.stats != nil {
		rl.stats.Record(ioType, op, granted)
	}
	return granted
}

// AsyncRequest is Request's cooperative-suspension counterpart: it
// suspends via a timer raced against done instead of time.Sleep, letting
// callers driving their own event loop cancel the wait (the limiter's
// bookkeeping still treats the reservation as granted; see
// priolimiter.Limiter.AsyncRequest).
func (rl *RateLimiter) AsyncRequest(done <-chan struct{}, ioType ioenum.IOType, op ioenum.IOOp, bytes int64) int64 {
	granted := bytes
	if op == ioenum.Write {
		priority := rl.GetIOPriority(ioType)
		if priority == ioenum.Stop {
			timer := time.NewTimer(stopWait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-done:
			}
			granted = 0
		} else {
			granted = rl.core.AsyncRequest(done, priority, bytes)
		}
	}
	if rl.stats != nil {
		rl.stats.Record(ioType, op, granted)
	}
	return granted
}

// SetGlobal installs rl as the process-wide limiter (internal/registry),
// for collaborators like iostream wrappers that aren't constructed with a
// handle directly. Not safe to call concurrently with Get calls that
// expect a stable limiter across a request's lifetime — intended for
// startup/test wiring.
func SetGlobal(rl *RateLimiter) {
	if rl == nil {
		registry.Set(nil)
		return
	}
	registry.Set(rl)
}

// Global returns the process-wide limiter set by SetGlobal, or nil.
func Global() *RateLimiter {
	h := registry.Get()
	if h == nil {
		return nil
	}
	return h.(*RateLimiter)
}
