// Package stats accumulates granted I/O bytes per IOType and IOOp.
//
// Reference: TiKV components/file_system/src/rate_limiter.rs (IORateLimiterStatistics)
package stats

import (
	"github.com/aalhour/ioratelimiter/internal/cacheline"
	"github.com/aalhour/ioratelimiter/internal/ioenum"
)

// Stats holds per-type, per-op accumulators of granted bytes. All
// counters only grow except via Reset, which is test-only: callers
// must quiesce traffic first, since Reset does not synchronize with
// concurrent Record calls.
type Stats struct {
	read  [ioenum.COUNT]cacheline.PaddedInt64
	write [ioenum.COUNT]cacheline.PaddedInt64
}

// New returns a zeroed Stats.
func New() *Stats {
	return &Stats{}
}

// Record atomically adds bytes to the counter selected by (ioType, ioOp).
// Relaxed ordering suffices: there is no cross-variable coherence
// requirement between counters.
func (s *Stats) Record(ioType ioenum.IOType, ioOp ioenum.IOOp, bytes int64) {
	if bytes == 0 {
		return
	}
	if ioOp == ioenum.Read {
		s.read[ioType].Add(bytes)
	} else {
		s.write[ioType].Add(bytes)
	}
}

// Fetch returns the current relaxed-load value of the selected counter.
func (s *Stats) Fetch(ioType ioenum.IOType, ioOp ioenum.IOOp) int64 {
	if ioOp == ioenum.Read {
		return s.read[ioType].Load()
	}
	return s.write[ioType].Load()
}

// Reset stores 0 to all counters. Test harness only: callers must
// quiesce traffic first, as Reset does not synchronize with concurrent
// Record calls.
func (s *Stats) Reset() {
	for i := range s.read {
		s.read[i].Store(0)
		s.write[i].Store(0)
	}
}
