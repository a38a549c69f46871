package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aalhour/ioratelimiter/internal/ioenum"
	"github.com/aalhour/ioratelimiter/internal/stats"
)

func TestObserveWaitNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveWait(ioenum.High, time.Millisecond) // must not panic
}

func TestObserveWaitRecordsIntoHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveWait(ioenum.High, 5*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "rate_limiter_request_wait_duration_seconds" {
			found = true
			if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
				t.Fatalf("sample count = %d, want 1", got)
			}
		}
	}
	if !found {
		t.Fatalf("wait histogram not registered")
	}
}

func TestSampleTaskFlushesOnlyPositiveDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	s := stats.New()
	s.Record(ioenum.Compaction, ioenum.Write, 100)

	task := StartSampleTask(c, s, 5*time.Millisecond)
	defer task.Stop()

	time.Sleep(30 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != "rate_limiter_io_bytes" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != 100 {
		t.Fatalf("io_bytes total = %v, want 100 (sampled once, no further deltas)", total)
	}
}

func TestStartSampleTaskNilCollectorReturnsNil(t *testing.T) {
	if task := StartSampleTask(nil, stats.New(), time.Millisecond); task != nil {
		t.Fatalf("expected nil SampleTask when collector is nil")
	}
}

func TestStopNilSampleTaskIsNoop(t *testing.T) {
	var task *SampleTask
	task.Stop() // must not panic
}
