// Package memio provides the fenced memory primitives the calibrator and
// stall loop time: a sequential buffer read, a buffer copy, and a
// worst-cache-line-latency probe.
package memio

import "github.com/ja7ad/pcmsim/internal/ticks"

// ReadBuffer reads every byte of p sequentially. The read order matters
// for TimedMaxLineRead below; callers that only want the side effect of
// warming (or, after Spoil, re-missing) the cache can call this directly.
func ReadBuffer(p []byte) {
	var sink byte
	for _, b := range p {
		sink ^= b
	}
	sinkByte = sink
}

// sinkByte defeats dead-code elimination of the read loop above; its
// value is never otherwise observed.
var sinkByte byte

// CopyBuffer copies src into dst, which must be at least len(src) long.
func CopyBuffer(dst, src []byte) {
	copy(dst, src)
}

// lineStride is the cache-line size assumed for TimedMaxLineRead's
// sampling interval. 64 bytes matches essentially every x86-64 and arm64
// part in service.
const lineStride = 64

// TimedMaxLineRead reads one word from each lineStride-sized stride of p
// and returns the maximum inter-sample cycle delta observed. A single L2
// miss shows up as an outlier at exactly one stride, which is exactly
// what the calibrator and the classification thresholds are built to
// detect (see internal/calib).
func TimedMaxLineRead(clk ticks.Clock, p []byte) uint64 {
	if len(p) == 0 {
		return 0
	}
	var max uint64
	prev := clk.Raw()
	for off := 0; off < len(p); off += lineStride {
		sinkByte = p[off]
		cur := clk.Raw()
		if cur > prev {
			delta := cur - prev
			if delta > max {
				max = delta
			}
		}
		prev = cur
	}
	return max
}

// spoilStride keeps Spoil's sweep cache-line granular, matching the
// granularity memory-timing measurements operate at.
const spoilStride = 64

// Spoil strides a buffer end to end, evicting whatever previously
// resident data the target buffer had from cache. The original kernel
// module instead issues a WBINVD instruction; a portable Go program has
// no access to that, so calibration trials use a spoiler buffer several
// times larger than the last-level cache instead — the standard
// technique when a privileged cache-flush instruction isn't available.
func Spoil(spoiler []byte) {
	var sink byte
	for off := 0; off < len(spoiler); off += spoilStride {
		sink ^= spoiler[off]
	}
	sinkByte = sink
}
