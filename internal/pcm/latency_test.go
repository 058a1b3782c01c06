package pcm

import (
	"testing"

	"github.com/ja7ad/pcmsim/internal/calib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticCalibration(nMax int) *calib.Table {
	t := &calib.Table{
		NMax:          nMax,
		BusMHz:        333,
		BusScale:      6,
		RowWidthBytes: 128,
		MemTRCD:       3,
		MemTRP:        3,
	}
	t.OverheadRead[calib.Uncached] = make([]uint64, nMax)
	t.OverheadRead[calib.Cached] = make([]uint64, nMax)
	for n := 1; n <= nMax; n++ {
		t.OverheadRead[calib.Uncached][n-1] = uint64(200 * n)
	}
	return t
}

func TestDerive_LatencyMonotonicallyIncreasing(t *testing.T) {
	cal := syntheticCalibration(8)
	table := Derive(cal, DefaultParams())

	assert.True(t, table.Monotonic(Read), "read latency must be strictly increasing in n")
	assert.True(t, table.Monotonic(Write), "write latency must be strictly increasing in n")
}

func TestDerive_DeltaNonNegativeWhenPCMSlowerThanMem(t *testing.T) {
	cal := syntheticCalibration(4)
	table := Derive(cal, DefaultParams())
	assert.True(t, table.NonNegative(), "pcm_tRCD/tRP exceed memory timings so deltas must not go negative")
}

func TestDerive_DeltaCanGoNegativeWhenPCMFasterThanMem(t *testing.T) {
	cal := syntheticCalibration(2)
	// An implausible but legal params set where the "PCM" timings are
	// faster than the measured DRAM timings; NonNegative must report false
	// rather than silently clamping, matching the documented open question.
	fastParams := Params{RowWidthBytes: 256, OrgTRCD: 1, OrgTRP: 1, OrgMHz: 400}
	table := Derive(cal, fastParams)
	require.False(t, table.NonNegative())
}

func TestScaleParam_ZeroOrgMHzReturnsValueUnscaled(t *testing.T) {
	assert.Equal(t, 22.0, scaleParam(22, 333, 0))
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "write", Write.String())
}
