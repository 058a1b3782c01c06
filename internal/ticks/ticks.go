// Package ticks provides the processor cycle-counter abstraction the
// calibrator and stall loop are built on.
//
// A real PCM simulator reads the x86 time-stamp counter directly (RDTSC),
// optionally preceded by a CPUID to serialize the pipeline so no earlier
// instruction's latency leaks into the sample. A portable Go program cannot
// issue either instruction without per-architecture assembly stubs, so
// Clock instead derives a synthetic cycle count from the monotonic wall
// clock scaled by a configured CPU frequency. The Clock interface is the
// seam: production code uses WallClock, tests inject a Scripted clock that
// returns an exact sequence of values.
package ticks

import (
	"runtime"
	"time"
)

// Clock reads the processor's cycle counter.
type Clock interface {
	// Fenced returns a cycle count preceded by a pipeline serialization.
	// Used only during calibration, where the extra cost is amortized.
	Fenced() uint64
	// Raw returns a cycle count with no serialization. Used inside the
	// stall loop, where ordering is already established by the preceding
	// buffer copy's own fence.
	Raw() uint64
}

// WallClock is a Clock backed by the monotonic wall clock, scaled by
// cpuMHz into a synthetic cycle count. It is the production Clock.
type WallClock struct {
	cpuMHz float64
	epoch  time.Time
}

// NewWallClock returns a WallClock calibrated to run at cpuMHz million
// cycles per second.
func NewWallClock(cpuMHz float64) *WallClock {
	return &WallClock{cpuMHz: cpuMHz, epoch: time.Now()}
}

func (w *WallClock) cycles() uint64 {
	elapsed := time.Since(w.epoch)
	return uint64(elapsed.Seconds() * w.cpuMHz * 1e6)
}

// Fenced pins the calling goroutine to its OS thread for the duration of
// the read, mirroring the original's cpuid-before-rdtsc pairing: no
// privileged instruction is available in portable Go, but thread pinning
// prevents the scheduler from migrating the goroutine mid-measurement,
// which is the dominant source of spurious timing noise the pairing
// guards against.
func (w *WallClock) Fenced() uint64 {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return w.cycles()
}

// Raw returns a cycle count with no thread pinning.
func (w *WallClock) Raw() uint64 { return w.cycles() }

// Scripted is a Clock that returns a fixed sequence of values, one per
// call, looping back to the first value once all are exhausted. Used by
// tests to drive the stall loop and calibrator through exact scenarios
// without depending on real timing.
type Scripted struct {
	values []uint64
	next   int
}

// NewScripted returns a Scripted clock that yields values in order on
// successive calls to either Fenced or Raw (both methods share one cursor,
// since the stall loop never calls both within one measurement).
func NewScripted(values ...uint64) *Scripted {
	return &Scripted{values: values}
}

func (s *Scripted) Fenced() uint64 { return s.advance() }
func (s *Scripted) Raw() uint64    { return s.advance() }

func (s *Scripted) advance() uint64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// MeasureOverhead samples clk.Fenced() back-to-back trials times and
// returns the mean cost of a single fenced read. Calibration uses this to
// derive tick_read_overhead, which every other latency measurement
// subtracts before recording.
func MeasureOverhead(clk Clock, trials int) uint64 {
	if trials <= 0 {
		trials = 128
	}
	var total uint64
	for i := 0; i < trials; i++ {
		before := clk.Fenced()
		after := clk.Fenced()
		if after > before {
			total += after - before
		}
	}
	return total / uint64(trials)
}
