package pcmdisk

import (
	"github.com/ja7ad/pcmsim/internal/calib"
	"github.com/ja7ad/pcmsim/internal/pcm"
)

// stepClock is a deterministic Clock that advances by 1 on every call,
// shared by Fenced and Raw — enough to drive the stall loop through exact,
// repeatable scenarios without depending on real hardware timing.
type stepClock struct{ n uint64 }

func (c *stepClock) Fenced() uint64 { c.n++; return c.n }
func (c *stepClock) Raw() uint64    { c.n++; return c.n }

// newTestCalibration builds an 8-sector calibration table whose
// classification always resolves predictably under stepClock (every
// measured interval is exactly 1 tick): ThresholdReadCached and
// ThresholdWriteCached[1] are both well above 1, so every read/write
// classifies as cached unless a test overrides the table afterward.
func newTestCalibration() *calib.Table {
	nMax := 8
	t := &calib.Table{NMax: nMax, TickReadOverhead: 1_000_000}
	t.ThresholdReadCached = make([]uint64, nMax)
	t.ThresholdReadCBLo = make([]uint64, nMax)
	t.ThresholdReadCBHi = make([]uint64, nMax)
	t.ThresholdWriteCached[0] = make([]uint64, nMax)
	t.ThresholdWriteCached[1] = make([]uint64, nMax)
	t.ThresholdWriteLo = make([]uint64, nMax)
	for i := 0; i < nMax; i++ {
		t.ThresholdReadCached[i] = 1000
		t.ThresholdReadCBLo[i] = 5000
		t.ThresholdReadCBHi[i] = 6000
		t.ThresholdWriteCached[1][i] = 1000
		t.ThresholdWriteCached[0][i] = 9000
		t.ThresholdWriteLo[i] = 7000
	}
	return t
}

// newTestPCMTable builds a PCM latency-delta table with a fixed per-n
// delta, large enough to be unmistakable in budget assertions.
func newTestPCMTable(nMax int) *pcm.Table {
	pt := &pcm.Table{NMax: nMax}
	pt.Delta[pcm.Read] = make([]int64, nMax)
	pt.Delta[pcm.Write] = make([]int64, nMax)
	for i := 0; i < nMax; i++ {
		pt.Delta[pcm.Read][i] = 700
		pt.Delta[pcm.Write][i] = 700
	}
	return pt
}

func newTestDevice(capacityMB int) *Device {
	cal := newTestCalibration()
	pt := newTestPCMTable(cal.NMax)
	clk := &stepClock{}
	d, err := Allocate(capacityMB, cal, pt, clk, Config{})
	if err != nil {
		panic(err)
	}
	return d
}
