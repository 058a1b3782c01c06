// Package pcm extrapolates calibrated DRAM timings into the PCM-scale
// per-sector read/write latencies the stall loop bills against.
package pcm

import (
	"math"

	"github.com/ja7ad/pcmsim/internal/calib"
)

// Op identifies which PCM operation a latency figure belongs to.
type Op int

const (
	Read Op = iota
	Write
)

func (o Op) String() string {
	if o == Write {
		return "write"
	}
	return "read"
}

// Params are the published PCM row-activation/precharge parameters, scaled
// to the measured bus frequency at Derive time.
type Params struct {
	// RowWidthBytes is the PCM logical row width (pcm_row_width); 256 by
	// default, independent of the DRAM row width the calibrator measured.
	RowWidthBytes int

	// OrgTRCD, OrgTRP, OrgMHz are the PCM datasheet parameters as
	// published, before bus-frequency scaling.
	OrgTRCD float64
	OrgTRP  float64
	OrgMHz  float64
}

// DefaultParams returns the reference PCM parameters: tRCD=22, tRP=60,
// measured at 400 MHz.
func DefaultParams() Params {
	return Params{RowWidthBytes: 256, OrgTRCD: 22, OrgTRP: 60, OrgMHz: 400}
}

// Table holds the derived per-sector PCM latency and delta figures, indexed
// the same way as calib.Table: slice index n-1 for sector count n.
type Table struct {
	NMax int

	// Latency[op][n-1] is the full CPU-cycle cost an aligned n-sector
	// operation should take on PCM.
	Latency [2][]uint64

	// Delta[op][n-1] = Latency[op][n-1] - overhead_read[uncached][n-1],
	// the quantity the stall loop actually adds to its budget.
	Delta [2][]int64

	PCMTRCD float64
	PCMTRP  float64
}

// Derive computes the PCM latency table from a completed calibration Table
// and the PCM datasheet Params. It does not validate pcmTRCD >= memTRCD;
// callers that care about the non-negativity invariant (see NonNegative)
// should check it explicitly rather than assume it.
func Derive(cal *calib.Table, params Params) *Table {
	pcmTRCD := scaleParam(params.OrgTRCD, cal.BusMHz, params.OrgMHz)
	pcmTRP := scaleParam(params.OrgTRP, cal.BusMHz, params.OrgMHz)

	t := &Table{NMax: cal.NMax, PCMTRCD: pcmTRCD, PCMTRP: pcmTRP}
	t.Latency[Read] = make([]uint64, cal.NMax)
	t.Latency[Write] = make([]uint64, cal.NMax)
	t.Delta[Read] = make([]int64, cal.NMax)
	t.Delta[Write] = make([]int64, cal.NMax)

	rowWidth := float64(cal.RowWidthBytes)
	if rowWidth <= 0 {
		rowWidth = 128
	}
	pcmRowWidth := float64(params.RowWidthBytes)
	if pcmRowWidth <= 0 {
		pcmRowWidth = 256
	}

	for n := 1; n <= cal.NMax; n++ {
		bytes := float64(n * 512)
		memRows := bytes / rowWidth
		pcmRows := bytes / pcmRowWidth

		dRead := pcmRows*pcmTRCD - memRows*cal.MemTRCD
		dWrite := pcmRows*pcmTRP - memRows*cal.MemTRP

		overheadUncached := float64(cal.OverheadRead[calib.Uncached][n-1])

		latencyRead := overheadUncached + dRead*cal.BusScale
		latencyWrite := overheadUncached + dWrite*cal.BusScale

		t.Latency[Read][n-1] = nonNegativeRound(latencyRead)
		t.Latency[Write][n-1] = nonNegativeRound(latencyWrite)

		t.Delta[Read][n-1] = int64(math.Round(latencyRead - overheadUncached))
		t.Delta[Write][n-1] = int64(math.Round(latencyWrite - overheadUncached))
	}

	return t
}

// scaleParam scales a PCM datasheet timing (published at orgMHz) to the
// measured bus frequency busMHz, rounded to one decimal place as the
// reference's fixed-point arithmetic does.
func scaleParam(orgValue, busMHz, orgMHz float64) float64 {
	if orgMHz <= 0 {
		return orgValue
	}
	return math.Round(10*orgValue*busMHz/orgMHz) / 10
}

func nonNegativeRound(x float64) uint64 {
	if x < 0 {
		return 0
	}
	return uint64(math.Round(x))
}

// NonNegative reports whether every delta in the table is >= 0, the
// invariant the data model documents as "must be checked, not asserted"
// whenever pcmTRCD >= memory_tRCD.
func (t *Table) NonNegative() bool {
	for _, op := range []Op{Read, Write} {
		for _, d := range t.Delta[op] {
			if d < 0 {
				return false
			}
		}
	}
	return true
}

// Monotonic reports whether Latency[op] is strictly increasing in n, the
// property required by testable property 4 (seeded by synthetic
// calibration vectors).
func (t *Table) Monotonic(op Op) bool {
	xs := t.Latency[op]
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}
