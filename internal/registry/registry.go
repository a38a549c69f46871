// Package registry is a process-wide slot holding the active rate
// limiter, for collaborators (e.g. iostream wrappers) that are not wired
// with a handle directly.
//
// An atomic pointer swap gives the "set races with in-flight readers, get
// clones out a handle" contract a mutex-guarded optional would, without
// the extra lock.
package registry

import (
	"sync/atomic"

	"github.com/aalhour/ioratelimiter/internal/ioenum"
)

// Handle is the minimal interface a registered limiter must satisfy.
// Defined here (rather than importing the root package) to keep registry
// free of a dependency cycle with the facade that calls Set.
type Handle interface {
	Request(ioType ioenum.IOType, op ioenum.IOOp, bytes int64) int64
	AsyncRequest(done <-chan struct{}, ioType ioenum.IOType, op ioenum.IOOp, bytes int64) int64
}

var global atomic.Pointer[Handle]

// Set replaces the process-wide handle. Passing nil clears it. Intended
// for process wiring at startup (or test setup); not meant to be swapped
// under live traffic.
func Set(h Handle) {
	if h == nil {
		global.Store(nil)
		return
	}
	global.Store(&h)
}

// Get returns the process-wide handle, or nil if none is set.
func Get() Handle {
	p := global.Load()
	if p == nil {
		return nil
	}
	return *p
}
