package pcmdisk

import (
	"github.com/ja7ad/pcmsim/internal/calib"
	"github.com/ja7ad/pcmsim/internal/memio"
	"github.com/ja7ad/pcmsim/internal/numeric"
	"github.com/ja7ad/pcmsim/internal/pcm"
	"github.com/ja7ad/pcmsim/types"
)

// classifyRead reports whether T indicates the copy's source was cached,
// per §4.6: cached if T is below the base threshold, or falls strictly
// inside the writeback window (cb_lo, cb_hi).
func classifyRead(cal *calib.Table, n int, T uint64) bool {
	if T < cal.ThresholdReadCached[n-1] {
		return true
	}
	return T > cal.ThresholdReadCBLo[n-1] && T < cal.ThresholdReadCBHi[n-1]
}

// classifyWrite reports whether T indicates the copy's destination was
// cached, per §4.7 (grounded in the reference's pcm_write: the write
// thresholds are split depending on which side of the *read* threshold T
// falls, since a cached write and a cached read produce different but
// overlapping timing signatures).
func classifyWrite(cal *calib.Table, n int, T uint64) bool {
	if T < cal.ThresholdReadCached[n-1] {
		return T < cal.ThresholdWriteCached[1][n-1]
	}
	return T > cal.ThresholdWriteLo[n-1] && T < cal.ThresholdWriteCached[0][n-1]
}

// drain busy-waits until the running budget is exhausted, per §4.6/§4.7's
// shared drain tail. It never sleeps or yields: the busy wait is the
// timing model, not an implementation detail to optimize away.
func (d *Device) drain(after uint64) {
	t := d.clk.Raw()
	d.budget -= types.CycleDelta(clampedDelta(t, after))
	for int64(d.budget) >= int64(d.cal.TickReadOverhead) {
		T := d.clk.Raw()
		d.budget -= types.CycleDelta(clampedDelta(T, t))
		t = T
	}
}

// clampedDelta returns cur-prev as an int64, clamped to zero when negative
// (a cross-CPU-migration artifact per §5's shared-resources note; the
// reference's C cast-to-unsigned wraparound is not reproduced in Go).
func clampedDelta(cur, prev uint64) int64 {
	if cur < prev {
		return 0
	}
	return int64(numeric.ClampNonNegative(int64(cur - prev)))
}

// stallRead executes one aligned read transfer: copy, classify, bill, and
// drain. Caller must hold d.mu.
func (d *Device) stallRead(dst []byte, sector types.Sectors, n int) {
	d.state = stateRunning

	offset := sector.Bytes()
	before := d.clk.Raw()
	memio.CopyBuffer(dst, d.backing[offset:offset+uint64(n)*types.SectorSize])
	after := d.clk.Raw()
	T := clampedDelta(after, before)

	// Config.IgnoreL2/GroundTruth/CheckAccuracy are documented no-op
	// placeholders (see Config) and never alter the classification below.
	cached := classifyRead(d.cal, n, uint64(T))

	if cached {
		d.reads[1]++
	} else {
		d.reads[0]++
		d.budget += types.CycleDelta(d.pcm.Delta[pcm.Read][n-1])
		d.dirty.clear(uint64(sector))
	}

	d.state = stateDraining
	d.drain(after)
	d.state = stateIdle
}

// stallWrite executes one aligned write transfer: copy, classify, bill
// (unless coalesced), and drain. Caller must hold d.mu.
func (d *Device) stallWrite(src []byte, sector types.Sectors, n int) {
	d.state = stateRunning

	offset := sector.Bytes()
	dst := d.backing[offset : offset+uint64(n)*types.SectorSize]

	before := d.clk.Raw()
	memio.CopyBuffer(dst, src)
	after := d.clk.Raw()
	T := clampedDelta(after, before)

	cached := classifyWrite(d.cal, n, uint64(T))

	if cached {
		d.writes[1]++
	} else {
		d.writes[0]++
	}

	dirty := d.dirty.isSet(uint64(sector))
	d.dirty.set(uint64(sector))

	if !(cached && dirty) {
		d.budget += types.CycleDelta(d.pcm.Delta[pcm.Write][n-1])
	}

	d.state = stateDraining
	d.drain(after)
	d.state = stateIdle
}
