// Package metrics exports the rate limiter's Prometheus-style series: a
// wait-duration histogram observed directly from the request path, and an
// io_bytes counter vector sampled on a tick from Stats snapshots.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aalhour/ioratelimiter/internal/ioenum"
	"github.com/aalhour/ioratelimiter/internal/stats"
)

// Collector owns the two series: a wait-duration histogram and an
// io_bytes counter vector. Nil-safe: all
// methods tolerate a nil *Collector so the facade can treat metrics as an
// optional collaborator without a separate interface/null-object type.
type Collector struct {
	waitSeconds *prometheus.HistogramVec
	ioBytes     *prometheus.CounterVec
}

// NewCollector registers the two series against reg under the rate_limiter
// namespace; when reg is nil the series are created but not registered
// anywhere. Call once per process;
// constructing a second Collector against the same registerer panics on
// the duplicate registration, matching promauto's own contract.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		waitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rate_limiter",
				Name:      "request_wait_duration_seconds",
				Help:      "Time a request spent waiting for budget, by priority.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"priority"},
		),
		ioBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rate_limiter",
				Name:      "io_bytes",
				Help:      "Granted I/O bytes, by workload type and direction.",
			},
			[]string{"io_type", "io_op"},
		),
	}
}

// ObserveWait records a completed wait for priority. Matches
// priolimiter.WaitObserver's signature so it can be passed directly as one.
func (c *Collector) ObserveWait(priority ioenum.IOPriority, wait time.Duration) {
	if c == nil {
		return
	}
	c.waitSeconds.WithLabelValues(priority.String()).Observe(wait.Seconds())
}

// SampleTask periodically flushes Stats deltas into the io_bytes counter.
// Prometheus counters can only increase, but Stats holds absolute totals,
// so each tick adds the delta against a per-(type,op) snapshot rather than
// re-setting the counter.
type SampleTask struct {
	collector *Collector
	source    *stats.Stats
	ticker    *time.Ticker
	done      chan struct{}
	prevRead  [ioenum.COUNT]int64
	prevWrite [ioenum.COUNT]int64
}

// StartSampleTask starts a SampleTask sampling source into collector every
// period. Returns nil if collector or source is nil (nothing to sample).
func StartSampleTask(collector *Collector, source *stats.Stats, period time.Duration) *SampleTask {
	if collector == nil || source == nil {
		return nil
	}
	t := &SampleTask{
		collector: collector,
		source:    source,
		ticker:    time.NewTicker(period),
		done:      make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *SampleTask) run() {
	for {
		select {
		case <-t.ticker.C:
			t.flush()
		case <-t.done:
			return
		}
	}
}

func (t *SampleTask) flush() {
	for i := ioenum.IOType(0); i < ioenum.COUNT; i++ {
		read := t.source.Fetch(i, ioenum.Read)
		if delta := read - t.prevRead[i]; delta > 0 {
			t.collector.ioBytes.WithLabelValues(i.String(), ioenum.Read.String()).Add(float64(delta))
		}
		t.prevRead[i] = read

		write := t.source.Fetch(i, ioenum.Write)
		if delta := write - t.prevWrite[i]; delta > 0 {
			t.collector.ioBytes.WithLabelValues(i.String(), ioenum.Write.String()).Add(float64(delta))
		}
		t.prevWrite[i] = write
	}
}

// Stop terminates the task's goroutine. Safe to call once; stopping a nil
// *SampleTask is a no-op.
func (t *SampleTask) Stop() {
	if t == nil {
		return
	}
	t.ticker.Stop()
	close(t.done)
}
