// Package cacheline provides cache-line-padded atomic counters.
//
// No cache-padding library appears anywhere in this module's dependency
// corpus (the nearest relative, crossbeam's CachePadded, is Rust-only), so
// this is a small hand-rolled stdlib type rather than an imported one. See
// DESIGN.md for the standard-library justification.
package cacheline

import "sync/atomic"

// lineSize is the assumed L1 cache line size on amd64/arm64.
const lineSize = 64

// PaddedInt64 is an atomic.Int64 padded to its own cache line, so that two
// unrelated counters placed adjacently in an array never share a line and
// thrash each other under concurrent writers (e.g. one priority's
// bytes_through next to another's).
type PaddedInt64 struct {
	v atomic.Int64
	_ [lineSize - 8]byte
}

func (p *PaddedInt64) Load() int64 { return p.v.Load() }

func (p *PaddedInt64) Store(val int64) { p.v.Store(val) }

// Add adds delta and returns the new value, matching AcqRel fetch-add
// semantics (Go's sync/atomic operations are sequentially consistent,
// which is at least as strong as AcqRel).
func (p *PaddedInt64) Add(delta int64) int64 { return p.v.Add(delta) }

// Swap stores val and returns the previous value.
func (p *PaddedInt64) Swap(val int64) int64 { return p.v.Swap(val) }
