package calib

// CacheState classifies the cache residency of a buffer at the start of a
// timed operation.
type CacheState int

const (
	Uncached CacheState = iota
	Cached
	UncachedWriteback
)

func (s CacheState) String() string {
	switch s {
	case Uncached:
		return "uncached"
	case Cached:
		return "cached"
	case UncachedWriteback:
		return "uncached+writeback"
	default:
		return "unknown"
	}
}

// Table is the full set of thresholds and overheads the stall loop
// depends on, produced once by Calibrate and shared read-only by every
// device thereafter (see pcmdisk.Device, which holds a *Table).
type Table struct {
	NMax int

	// TickReadOverhead is the self-cost of a single Clock.Fenced() read;
	// the OverheadRead and OverheadCopy means below have already had this
	// subtracted (ThresholdL2 has not).
	TickReadOverhead uint64

	// ThresholdL2 is the cycle count separating a cached from an
	// uncached TimedMaxLineRead sample.
	ThresholdL2 uint64

	// Read classification, indexed by sector count n (1..NMax), slice
	// index n-1.
	ThresholdReadCached []uint64
	ThresholdReadCBLo   []uint64
	ThresholdReadCBHi   []uint64

	// Write classification, indexed the same way.
	ThresholdWriteCached [2][]uint64 // [0]=primary threshold, [1]=secondary
	ThresholdWriteLo     []uint64

	// OverheadRead[cacheState][n-1] is the mean measured ReadBuffer cost.
	OverheadRead [2][]uint64
	VarianceRead [2][]float64

	// OverheadCopy[srcState][dstState][n-1] is the mean measured
	// CopyBuffer cost across the six {uncached,cached,uncached+writeback}²
	// scenarios.
	OverheadCopy [3][3][]uint64
	VarianceCopy [3][3][]float64

	// Bus and row-geometry parameters.
	BusMHz        float64
	BusScale      float64
	RowWidthBytes int
	MemTRCD       float64
	MemTRP        float64
}

func newTable(nMax int) *Table {
	t := &Table{NMax: nMax}
	t.ThresholdReadCached = make([]uint64, nMax)
	t.ThresholdReadCBLo = make([]uint64, nMax)
	t.ThresholdReadCBHi = make([]uint64, nMax)
	t.ThresholdWriteCached[0] = make([]uint64, nMax)
	t.ThresholdWriteCached[1] = make([]uint64, nMax)
	t.ThresholdWriteLo = make([]uint64, nMax)
	for cs := 0; cs < 2; cs++ {
		t.OverheadRead[cs] = make([]uint64, nMax)
		t.VarianceRead[cs] = make([]float64, nMax)
	}
	for s := 0; s < 3; s++ {
		for d := 0; d < 3; d++ {
			t.OverheadCopy[s][d] = make([]uint64, nMax)
			t.VarianceCopy[s][d] = make([]float64, nMax)
		}
	}
	return t
}
