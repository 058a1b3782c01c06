package calib

import (
	"context"
	"testing"

	"github.com/ja7ad/pcmsim/internal/ticks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monotonicClock returns a steadily increasing sequence so every measured
// interval is positive and deterministic; exercises Calibrate end-to-end
// without depending on real hardware timing.
type monotonicClock struct{ n uint64 }

func (c *monotonicClock) Fenced() uint64 { c.n += 7; return c.n }
func (c *monotonicClock) Raw() uint64    { c.n += 3; return c.n }

func TestCalibrate_ProducesPopulatedTable(t *testing.T) {
	cfg := Config{NMax: 2, Trials: 4, SpoilerBytes: 4096, RowWidthTrials: 2, RowWidthExp: 10}
	clk := &monotonicClock{}

	table, err := Calibrate(context.Background(), clk, cfg)
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Len(t, table.ThresholdReadCached, 2)
	assert.Len(t, table.OverheadRead[Uncached], 2)
	assert.Greater(t, table.RowWidthBytes, 0)
	assert.Greater(t, table.BusMHz, 0.0)
}

func TestCalibrate_AllocationFailsWithZeroTrials(t *testing.T) {
	cfg := Config{NMax: 1, Trials: 1, OutlierCeiling: 1}
	// A clock whose first probe always exceeds the outlier ceiling.
	clk := ticks.NewScripted(0, 1_000_000)
	_, err := Calibrate(context.Background(), clk, cfg)
	require.ErrorIs(t, err, ErrAllocationFailed)
}

func TestMonotonic(t *testing.T) {
	assert.True(t, monotonic([]uint64{1, 2, 2, 5}))
	assert.False(t, monotonic([]uint64{5, 2}))
	assert.True(t, monotonic(nil))
}

func TestSubtractOverhead(t *testing.T) {
	assert.Equal(t, uint64(5), subtractOverhead(100, 110, 5))
	assert.Equal(t, uint64(0), subtractOverhead(100, 90, 5), "after < before clamps to zero")
	assert.Equal(t, uint64(0), subtractOverhead(100, 102, 5), "delta smaller than overhead clamps to zero")
}

func TestRoundToPowerOfTwo(t *testing.T) {
	assert.Equal(t, 128.0, roundToPowerOfTwo(140))
	assert.Equal(t, 256.0, roundToPowerOfTwo(250))
	assert.Equal(t, 128.0, roundToPowerOfTwo(0))
}

func TestDeriveCopyThresholds_NaturalOrdering(t *testing.T) {
	table := newTable(1)
	// oc[1][2] >= oc[0][0]: cb_lo = (oc[0][1]+oc[1][2])/2, cb_hi = (oc[0][0]+oc[1][2])/2
	table.OverheadCopy[Uncached][Uncached][0] = 100
	table.OverheadCopy[Uncached][Cached][0] = 50
	table.OverheadCopy[Cached][Uncached][0] = 60
	table.OverheadCopy[Cached][Cached][0] = 40
	table.OverheadCopy[Cached][UncachedWriteback][0] = 150
	table.OverheadCopy[UncachedWriteback][Cached][0] = 70

	deriveCopyThresholds(table, Config{NMax: 1})

	assert.Equal(t, uint64(100), table.ThresholdReadCBLo[0]) // (50+150)/2
	assert.Equal(t, uint64(125), table.ThresholdReadCBHi[0]) // (100+150)/2
}

func TestDetectRowWidth_S6_DetectsSyntheticRowWidth(t *testing.T) {
	// S6: feed the calibrator a synthetic timer whose per-sector read delta
	// corresponds exactly to a 128-byte logical row and verify
	// row_width_bytes = 128.
	cfg := Config{NMax: 3, RowWidthExp: 7, RowWidthTrials: 2, MemTRCDBusCycles: 5, MemTRPBusCycles: 5}
	// rowSwitchCost = 5 + 5 + ceil(2.5) = 13. size = 1<<7 = 128. A delta of
	// exactly size/128 * rowSwitchCost per additional n is engineered to
	// detect a 128-byte row: n=1,2,3 read costs of 13,26,39 cycles (before,
	// after pairs), a constant marginal cost of 13 per step.
	clk := ticks.NewScripted(0, 13, 0, 26, 0, 39)

	width := detectRowWidth(clk, cfg)
	assert.Equal(t, 128, width)
}

func TestDeriveCopyThresholds_WritebackInversion(t *testing.T) {
	table := newTable(1)
	table.OverheadCopy[Uncached][Uncached][0] = 100
	table.OverheadCopy[Uncached][Cached][0] = 50
	table.OverheadCopy[Cached][Uncached][0] = 60
	table.OverheadCopy[Cached][Cached][0] = 40
	table.OverheadCopy[Cached][UncachedWriteback][0] = 10 // below oc[0][1]=50
	table.OverheadCopy[UncachedWriteback][Cached][0] = 70

	deriveCopyThresholds(table, Config{NMax: 1})

	assert.Equal(t, uint64(0), table.ThresholdReadCBLo[0])
	assert.Equal(t, uint64(30), table.ThresholdReadCBHi[0]) // (50+10)/2
}
