package ioratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aalhour/ioratelimiter/internal/ioenum"
)

func approxEq(got, want int64, tolerancePct float64) bool {
	lo := float64(want) * (1 - tolerancePct)
	hi := float64(want) * (1 + tolerancePct)
	g := float64(got)
	return g >= lo && g <= hi
}

func TestDisabledLimiterGrantsInFull(t *testing.T) {
	rl := New(DefaultOptions())
	defer rl.Close()

	got := rl.Request(ioenum.Compaction, ioenum.Write, 10_000_000)
	if got != 10_000_000 {
		t.Fatalf("disabled limiter granted %d, want full amount", got)
	}
}

func TestReadsAreNeverThrottled(t *testing.T) {
	opts := DefaultOptions()
	opts.BytesPerSecond = 100
	opts.EnableStatistics = true
	rl := New(opts)
	defer rl.Close()
	rl.SetIOPriority(ioenum.ForegroundRead, ioenum.Low)

	start := time.Now()
	got := rl.Request(ioenum.ForegroundRead, ioenum.Read, 10_000_000)
	if got != 10_000_000 {
		t.Fatalf("read request granted %d, want full amount (reads bypass the bucket)", got)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("read request took %v, should return immediately", elapsed)
	}
	if got := rl.Statistics().Fetch(ioenum.ForegroundRead, ioenum.Read); got != 10_000_000 {
		t.Fatalf("Stats.Fetch after read = %d, want 10_000_000", got)
	}
}

func TestSetIOPriorityRoundTripsAndAdmitsWithinBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.RefillPeriod = 10 * time.Millisecond
	opts.BytesPerSecond = 1000 * 100 // 1000 bytes/10ms epoch
	rl := New(opts)
	defer rl.Close()

	rl.SetIOPriority(ioenum.Compaction, ioenum.High)
	if got := rl.GetIOPriority(ioenum.Compaction); got != ioenum.High {
		t.Fatalf("GetIOPriority = %v, want High", got)
	}

	granted := rl.Request(ioenum.Compaction, ioenum.Write, 500)
	if granted != 500 {
		t.Fatalf("granted = %d, want 500 (fits within the epoch budget)", granted)
	}
}

// TestHeavyFlowConvergesNearConfiguredRate exercises a single
// High-priority writer constantly over budget: granted throughput should
// converge, over many epochs, to approximately the configured rate.
func TestHeavyFlowConvergesNearConfiguredRate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping wall-clock convergence test in short mode")
	}
	opts := DefaultOptions()
	opts.RefillPeriod = 10 * time.Millisecond
	opts.BytesPerSecond = 10_000 // 10KB/s
	opts.EnableStatistics = true
	rl := New(opts)
	defer rl.Close()
	rl.SetIOPriority(ioenum.Compaction, ioenum.High)

	deadline := time.Now().Add(500 * time.Millisecond)
	var totalGranted int64
	for time.Now().Before(deadline) {
		totalGranted += rl.Request(ioenum.Compaction, ioenum.Write, 512)
	}

	wantBytes := int64(10_000 * 0.5) // 500ms worth at 10KB/s
	if !approxEq(totalGranted, wantBytes, 0.35) {
		t.Fatalf("granted %d bytes over 500ms, want close to %d (rate 10KB/s)", totalGranted, wantBytes)
	}
}

func TestConcurrentRequestsAcrossPriorities(t *testing.T) {
	opts := DefaultOptions()
	opts.RefillPeriod = 5 * time.Millisecond
	opts.BytesPerSecond = 100_000
	opts.EnableStatistics = true
	rl := New(opts)
	defer rl.Close()
	rl.SetIOPriority(ioenum.Compaction, ioenum.Low)
	rl.SetIOPriority(ioenum.Flush, ioenum.High)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rl.Request(ioenum.Compaction, ioenum.Write, 100)
		}()
		go func() {
			defer wg.Done()
			rl.Request(ioenum.Flush, ioenum.Write, 100)
		}()
	}
	wg.Wait()

	if got := rl.Statistics().Fetch(ioenum.Compaction, ioenum.Write); got != 2000 {
		t.Fatalf("compaction bytes = %d, want 2000", got)
	}
	if got := rl.Statistics().Fetch(ioenum.Flush, ioenum.Write); got != 2000 {
		t.Fatalf("flush bytes = %d, want 2000", got)
	}
}

func TestMetricsRegistererWiresCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := DefaultOptions()
	opts.Registerer = reg
	opts.EnableStatistics = true
	opts.BytesPerSecond = 2000 // 100 bytes per default 50ms epoch
	rl := New(opts)
	defer rl.Close()

	if rl.collector == nil {
		t.Fatalf("collector not wired despite opts.Registerer being set")
	}
	// A histogram vector with no observations is absent from Gather's
	// output, so overrun the epoch budget once: the second write waits and
	// the wait is observed through the wired collector.
	rl.Request(ioenum.Flush, ioenum.Write, 1000)
	rl.Request(ioenum.Flush, ioenum.Write, 1000)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "rate_limiter_request_wait_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rate_limiter_request_wait_duration_seconds to be registered")
	}
}

func TestGlobalRegistryRoundTrip(t *testing.T) {
	rl := New(DefaultOptions())
	defer rl.Close()
	defer SetGlobal(nil)

	SetGlobal(rl)
	if Global() != rl {
		t.Fatalf("Global() did not return the registered limiter")
	}

	SetGlobal(nil)
	if Global() != nil {
		t.Fatalf("Global() should be nil after SetGlobal(nil)")
	}
}
