package calib

import "log/slog"

// Config controls the calibration run. Defaults mirror the reference
// implementation's constants (DDR2-667 bus parameters, a 4 MB spoiler
// buffer, 100 probe buffers, an 8-sector transfer ceiling).
type Config struct {
	// NMax is the largest sector count (N_MAX) the stall loop will ever
	// see in one chunk; the calibration table is built for n in [1, NMax].
	NMax int

	// Trials is K, the number of probe buffers allocated, capped at 100.
	Trials int

	// DDRRatingMHz is the nominal DDR transfer rating; BusMHz is derived
	// as DDRRatingMHz/2 (a DDR bus clocks at half its rating).
	DDRRatingMHz float64

	// MemTRCDBusCycles, MemTRPBusCycles are the measured DRAM row-activate
	// and row-precharge costs, in bus cycles.
	MemTRCDBusCycles float64
	MemTRPBusCycles  float64

	// CPUMHz is the assumed CPU frequency, used to derive BusScale.
	CPUMHz float64

	// RowWidthExp, RowWidthTrials parameterize the logical-row-width
	// detection sweep (step 6): wd_exp and wd_trials in the reference.
	RowWidthExp    int
	RowWidthTrials int

	// OutlierCeiling rejects probe buffers whose initial uncached sample
	// exceeds this many cycles — the reference uses 2*2000.
	OutlierCeiling uint64

	// SpoilerBytes sizes the cache-eviction buffer used between trials.
	SpoilerBytes int

	Logger *slog.Logger
}

// DefaultConfig returns the calibration defaults used when a caller does
// not override them.
func DefaultConfig() Config {
	return Config{
		NMax:             8,
		Trials:           100,
		DDRRatingMHz:     667,
		MemTRCDBusCycles: 5,
		MemTRPBusCycles:  5,
		CPUMHz:           2400,
		RowWidthExp:      14,
		RowWidthTrials:   16,
		OutlierCeiling:   2 * 2000,
		SpoilerBytes:     4 * 1024 * 1024,
		Logger:           slog.Default(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NMax <= 0 {
		c.NMax = d.NMax
	}
	if c.Trials <= 0 || c.Trials > 100 {
		c.Trials = d.Trials
	}
	if c.DDRRatingMHz <= 0 {
		c.DDRRatingMHz = d.DDRRatingMHz
	}
	if c.MemTRCDBusCycles <= 0 {
		c.MemTRCDBusCycles = d.MemTRCDBusCycles
	}
	if c.MemTRPBusCycles <= 0 {
		c.MemTRPBusCycles = d.MemTRPBusCycles
	}
	if c.CPUMHz <= 0 {
		c.CPUMHz = d.CPUMHz
	}
	if c.RowWidthExp <= 0 {
		c.RowWidthExp = d.RowWidthExp
	}
	if c.RowWidthTrials <= 0 {
		c.RowWidthTrials = d.RowWidthTrials
	}
	if c.OutlierCeiling == 0 {
		c.OutlierCeiling = d.OutlierCeiling
	}
	if c.SpoilerBytes <= 0 {
		c.SpoilerBytes = d.SpoilerBytes
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}
