package stats

import (
	"sync"
	"testing"

	"github.com/aalhour/ioratelimiter/internal/ioenum"
)

func TestRecordAndFetch(t *testing.T) {
	s := New()

	s.Record(ioenum.ForegroundWrite, ioenum.Write, 100)
	s.Record(ioenum.ForegroundWrite, ioenum.Write, 50)
	s.Record(ioenum.ForegroundRead, ioenum.Read, 7)

	if got := s.Fetch(ioenum.ForegroundWrite, ioenum.Write); got != 150 {
		t.Fatalf("write bytes = %d, want 150", got)
	}
	if got := s.Fetch(ioenum.ForegroundRead, ioenum.Read); got != 7 {
		t.Fatalf("read bytes = %d, want 7", got)
	}
	// Reads and writes of the same type don't share a counter.
	if got := s.Fetch(ioenum.ForegroundWrite, ioenum.Read); got != 0 {
		t.Fatalf("cross-op leak: read bytes = %d, want 0", got)
	}
}

func TestZeroBytesIsNoop(t *testing.T) {
	s := New()
	s.Record(ioenum.Compaction, ioenum.Write, 0)
	if got := s.Fetch(ioenum.Compaction, ioenum.Write); got != 0 {
		t.Fatalf("bytes = %d, want 0", got)
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Record(ioenum.Import, ioenum.Write, 1000)
	s.Reset()
	if got := s.Fetch(ioenum.Import, ioenum.Write); got != 0 {
		t.Fatalf("bytes after reset = %d, want 0", got)
	}
}

func TestRecordConcurrent(t *testing.T) {
	s := New()
	const goroutines = 50
	const perGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range perGoroutine {
				s.Record(ioenum.Flush, ioenum.Write, 1)
			}
		}()
	}
	wg.Wait()

	want := int64(goroutines * perGoroutine)
	if got := s.Fetch(ioenum.Flush, ioenum.Write); got != want {
		t.Fatalf("bytes = %d, want %d", got, want)
	}
}
