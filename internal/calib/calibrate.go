// Package calib runs the one-time DRAM timing calibration the stall loop
// depends on: it measures read/copy overheads across cache states, derives
// the thresholds that classify a measured copy as cached/uncached/writeback,
// and detects the host's logical memory row width.
package calib

import (
	"context"
	"fmt"

	"github.com/ja7ad/pcmsim/internal/memio"
	"github.com/ja7ad/pcmsim/internal/numeric"
	"github.com/ja7ad/pcmsim/internal/ticks"
)

// probeBuffer is one of the K buffers allocated for calibration trials.
type probeBuffer struct {
	data []byte
}

// Calibrate runs the full calibration algorithm against clk and returns the
// resulting Table. It never returns an error for ErrCalibrationInconsistent:
// that condition is logged and calibration proceeds with the last-measured
// table, matching the reference implementation's printk-and-continue
// behavior. It returns ErrAllocationFailed only if zero probe buffers
// survive outlier rejection, since no measurement can be trusted from an
// empty sample.
func Calibrate(ctx context.Context, clk ticks.Clock, cfg Config) (*Table, error) {
	cfg = cfg.withDefaults()
	nMax := cfg.NMax

	unpin := ticks.PinCurrentThread()
	defer unpin()

	tickOverhead := ticks.MeasureOverhead(clk, 128)

	buffers := allocateProbeBuffers(clk, cfg)
	if len(buffers) == 0 {
		return nil, ErrAllocationFailed
	}

	table := newTable(nMax)
	table.TickReadOverhead = tickOverhead

	spoiler := make([]byte, cfg.SpoilerBytes)

	table.ThresholdL2 = thresholdL2(clk, buffers, spoiler, cfg)

	if err := measureReadOverheads(ctx, clk, buffers, spoiler, table, tickOverhead, cfg); err != nil {
		cfg.Logger.Warn("calibration read-overhead table not monotonic, proceeding with last measurement", "err", err)
	}

	measureCopyOverheads(clk, buffers, spoiler, table, tickOverhead, cfg)

	deriveCopyThresholds(table, cfg)

	rowWidth := detectRowWidth(clk, cfg)
	table.RowWidthBytes = rowWidth

	table.BusMHz = cfg.DDRRatingMHz / 2
	table.BusScale = cfg.CPUMHz / table.BusMHz
	table.MemTRCD = cfg.MemTRCDBusCycles
	table.MemTRP = cfg.MemTRPBusCycles

	return table, nil
}

// allocateProbeBuffers allocates up to cfg.Trials buffers of NMax sectors
// and discards any whose initial (necessarily-uncached) timing probe
// exceeds cfg.OutlierCeiling cycles, treating the outlier as NUMA/migration
// noise rather than genuine cache-miss signal.
func allocateProbeBuffers(clk ticks.Clock, cfg Config) []probeBuffer {
	size := cfg.NMax * 512
	out := make([]probeBuffer, 0, cfg.Trials)
	for i := 0; i < cfg.Trials; i++ {
		buf := probeBuffer{data: make([]byte, size)}
		probe := memio.TimedMaxLineRead(clk, buf.data)
		if probe > cfg.OutlierCeiling {
			continue
		}
		out = append(out, buf)
	}
	return out
}

// thresholdL2 computes the cycle count separating a cached from an
// uncached TimedMaxLineRead sample: flush, sample uncached, sample again
// (now cached), average across buffers, and set the split point a quarter
// of the way up from the cached mean toward the uncached mean.
func thresholdL2(clk ticks.Clock, buffers []probeBuffer, spoiler []byte, cfg Config) uint64 {
	var sSum, tSum uint64
	k := uint64(len(buffers))
	if k == 0 {
		return 0
	}
	for _, b := range buffers {
		memio.Spoil(spoiler)
		s := memio.TimedMaxLineRead(clk, b.data)
		t := memio.TimedMaxLineRead(clk, b.data)
		sSum += s
		tSum += t
	}
	sMean := sSum / k
	tMean := tSum / k
	if sMean <= tMean+4*k {
		cfg.Logger.Warn("uncached/cached L2 samples too close together, falling back to half of uncached mean",
			"s_mean", sMean, "t_mean", tMean)
		return sMean / 2
	}
	return tMean + (sMean-tMean)/4
}

// measureReadOverheads fills OverheadRead/VarianceRead for every n in
// [1, NMax]. It repeats the whole sweep up to NMax times as a sanity check
// that the table is monotonically increasing in n for both cache states;
// non-monotonicity after all passes is reported via ErrCalibrationInconsistent
// but never aborts calibration.
func measureReadOverheads(ctx context.Context, clk ticks.Clock, buffers []probeBuffer, spoiler []byte, table *Table, tickOverhead uint64, cfg Config) error {
	for pass := 0; pass < cfg.NMax; pass++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for n := 1; n <= cfg.NMax; n++ {
			size := n * 512
			var uncachedSamples, cachedSamples []float64
			for _, b := range buffers {
				region := b.data[:size]
				memio.Spoil(spoiler) // evict region so the first timed read below misses

				before := clk.Raw()
				memio.ReadBuffer(region)
				after := clk.Raw()
				uncached := subtractOverhead(before, after, tickOverhead)
				uncachedSamples = append(uncachedSamples, float64(uncached))

				before = clk.Raw()
				memio.ReadBuffer(region)
				after = clk.Raw()
				cached := subtractOverhead(before, after, tickOverhead)
				cachedSamples = append(cachedSamples, float64(cached))
			}
			table.OverheadRead[Uncached][n-1] = uint64(numeric.Mean(uncachedSamples))
			table.OverheadRead[Cached][n-1] = uint64(numeric.Mean(cachedSamples))
			table.VarianceRead[Uncached][n-1] = numeric.Variance(uncachedSamples)
			table.VarianceRead[Cached][n-1] = numeric.Variance(cachedSamples)
		}

		if monotonic(table.OverheadRead[Uncached]) && monotonic(table.OverheadRead[Cached]) {
			return nil
		}
	}
	return fmt.Errorf("%w: after %d passes", ErrCalibrationInconsistent, cfg.NMax)
}

func monotonic(xs []uint64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return false
		}
	}
	return true
}

func subtractOverhead(before, after, overhead uint64) uint64 {
	if after < before {
		return 0
	}
	d := after - before
	if d < overhead {
		return 0
	}
	return d - overhead
}

// measureCopyOverheads fills OverheadCopy/VarianceCopy across all nine
// (srcState, dstState) combinations (only six are meaningful per the
// reference: [0][0], [0][1], [1][0], [1][1], [1][2], [2][1]; the rest are
// left zero, matching the original's sparse population of the table).
func measureCopyOverheads(clk ticks.Clock, buffers []probeBuffer, spoiler []byte, table *Table, tickOverhead uint64, cfg Config) {
	scenarios := [][2]CacheState{
		{Uncached, Uncached},
		{Uncached, Cached},
		{Cached, Uncached},
		{Cached, Cached},
		{Cached, UncachedWriteback},
		{UncachedWriteback, Cached},
	}

	for n := 1; n <= cfg.NMax; n++ {
		size := n * 512
		for _, sc := range scenarios {
			src, dst := sc[0], sc[1]
			var samples []float64
			for _, b := range buffers {
				region := b.data[:size]
				target := make([]byte, size)

				prepareCacheState(region, src, spoiler)
				prepareCacheState(target, dst, spoiler)

				before := clk.Raw()
				memio.CopyBuffer(target, region)
				after := clk.Raw()
				samples = append(samples, float64(subtractOverhead(before, after, tickOverhead)))
			}
			mean := uint64(numeric.Mean(samples))
			v := numeric.Variance(samples)
			table.OverheadCopy[src][dst][n-1] = mean
			table.VarianceCopy[src][dst][n-1] = v
		}
	}
}

// prepareCacheState puts region into the requested cache state ahead of a
// timed copy: Uncached evicts it via the spoiler sweep, Cached warms it
// with a throwaway read, and UncachedWriteback evicts the region and then
// dirties the spoiler buffer so the region's eventual eviction has to write
// back a dirty victim line, reproducing the original's dirty_buffer trick.
func prepareCacheState(region []byte, state CacheState, spoiler []byte) {
	switch state {
	case Cached:
		memio.ReadBuffer(region)
	case Uncached:
		memio.Spoil(spoiler)
	case UncachedWriteback:
		memio.Spoil(spoiler)
		for i := range spoiler {
			spoiler[i]++
		}
	}
}

// deriveCopyThresholds computes the classification thresholds from the copy
// overhead means as piecewise-linear midpoints. The cb_lo/cb_hi corner
// cases are reproduced exactly as the reference orders them: each
// subsequent check may override the previous one, first-matching-last-wins
// in evaluation order (the reference's cascading if-statements).
func deriveCopyThresholds(table *Table, cfg Config) {
	oc := func(src, dst CacheState, n int) uint64 { return table.OverheadCopy[src][dst][n-1] }

	for n := 1; n <= cfg.NMax; n++ {
		table.ThresholdReadCached[n-1] = (oc(Uncached, Cached, n) + oc(Cached, Uncached, n)) / 2

		cbLo := (oc(Uncached, Cached, n) + oc(Cached, UncachedWriteback, n)) / 2
		cbHi := (oc(Uncached, Uncached, n) + oc(Cached, UncachedWriteback, n)) / 2

		if oc(Cached, UncachedWriteback, n) > oc(Uncached, Uncached, n) {
			cbLo = (oc(Uncached, Uncached, n) + oc(Cached, UncachedWriteback, n)) / 2
			cbHi = 1_000_000
		}

		if oc(Cached, UncachedWriteback, n) < oc(Uncached, Cached, n) {
			cbLo = 0
			cbHi = (oc(Uncached, Cached, n) + oc(Cached, UncachedWriteback, n)) / 2
		}

		if oc(Cached, UncachedWriteback, n) < oc(UncachedWriteback, Cached, n) &&
			oc(UncachedWriteback, Cached, n) < oc(Uncached, Cached, n) {
			cbLo = 0
			cbHi = (oc(UncachedWriteback, Cached, n) + oc(Cached, UncachedWriteback, n)) / 2
		}

		table.ThresholdReadCBLo[n-1] = cbLo
		table.ThresholdReadCBHi[n-1] = cbHi

		writeCached0 := (oc(Uncached, Cached, n) + oc(Cached, UncachedWriteback, n)) / 2
		writeCached1 := (oc(Cached, Cached, n) + oc(Cached, Uncached, n)) / 2
		if s := (oc(Uncached, Cached, n) + oc(Uncached, Uncached, n)) / 2; s > writeCached0 {
			writeCached0 = s
		}

		writeLo := table.ThresholdReadCached[n-1]
		if oc(Cached, UncachedWriteback, n) < oc(Uncached, Cached, n) {
			writeLo = (oc(Uncached, Cached, n) + oc(Cached, UncachedWriteback, n)) / 2
		}
		if oc(Cached, UncachedWriteback, n) < oc(UncachedWriteback, Cached, n) &&
			oc(UncachedWriteback, Cached, n) < oc(Uncached, Cached, n) {
			writeLo = (oc(UncachedWriteback, Cached, n) + oc(Cached, UncachedWriteback, n)) / 2
			writeCached0 = (oc(Uncached, Uncached, n) + oc(Uncached, Cached, n)) / 2
		}

		table.ThresholdWriteCached[0][n-1] = writeCached0
		table.ThresholdWriteCached[1][n-1] = writeCached1
		table.ThresholdWriteLo[n-1] = writeLo
	}
}

// detectRowWidth sweeps a fixed exponent size for RowWidthTrials rounds,
// converting the observed per-sector read delta into a row-switch count
// via tRCD + tRP + ceil(tCL), and rounds the averaged result to the
// nearest power of two.
func detectRowWidth(clk ticks.Clock, cfg Config) int {
	const tCL = 25.0 / 10.0 // tCL10/10 from the reference's fixed-point tCL
	rowSwitchCost := cfg.MemTRCDBusCycles + cfg.MemTRPBusCycles + ceil(tCL)

	size := 1 << cfg.RowWidthExp
	var widthSum float64
	for trial := 0; trial < cfg.RowWidthTrials; trial++ {
		var prevDelta, deltaSum float64
		samples := 0
		for n := 1; n <= cfg.NMax; n++ {
			buf := make([]byte, n*size)
			before := clk.Raw()
			memio.ReadBuffer(buf)
			after := clk.Raw()
			d := float64(subtractOverhead(before, after, 0))
			if n > 1 {
				deltaSum += d - prevDelta
				samples++
			}
			prevDelta = d
		}
		avgDelta := numeric.SafeDiv(deltaSum, float64(samples))
		rowSwitches := numeric.SafeDiv(avgDelta, rowSwitchCost)
		width := numeric.SafeDiv(float64(size), rowSwitches)
		widthSum += roundToPowerOfTwo(width)
	}

	avgWidth := widthSum / float64(cfg.RowWidthTrials)
	return int(roundToPowerOfTwo(avgWidth))
}

func ceil(x float64) float64 {
	if x == float64(int(x)) {
		return x
	}
	return float64(int(x) + 1)
}

// roundToPowerOfTwo rounds x to the nearest power of two, clamped to
// [64, 1024] — the plausible range for a logical DRAM row width. A
// non-positive x yields 128.
func roundToPowerOfTwo(x float64) float64 {
	if x <= 0 {
		return 128
	}
	best := 64.0
	bestDist := absF(x - best)
	for w := 128.0; w <= 1024; w *= 2 {
		if d := absF(x - w); d < bestDist {
			best, bestDist = w, d
		}
	}
	return best
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
