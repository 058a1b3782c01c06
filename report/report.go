// Package report renders the calibration and per-device statistics
// reports §6 of the specification asks for, using the same
// text/tabwriter-based table printer the teacher's CLI uses for its
// per-tick rows, plus a JSON twin for machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ja7ad/pcmsim/internal/calib"
	"github.com/ja7ad/pcmsim/internal/numeric"
	"github.com/ja7ad/pcmsim/internal/pcm"
)

// scenarioLabels names the six copy-overhead scenarios the calibration
// report tabulates.
var scenarioLabels = []struct {
	src, dst calib.CacheState
	label    string
}{
	{calib.Uncached, calib.Uncached, "uncached->uncached"},
	{calib.Uncached, calib.Cached, "uncached->cached"},
	{calib.Cached, calib.Uncached, "cached->uncached"},
	{calib.Cached, calib.Cached, "cached->cached"},
	{calib.Cached, calib.UncachedWriteback, "cached->writeback"},
	{calib.UncachedWriteback, calib.Cached, "writeback->cached"},
}

// CalibrationReport captures everything the "calibration report" prose in
// §6 asks for: bus parameters, tick overhead, mean cached/uncached read
// cycles, and per-sector-count tables of all six copy-overhead scenarios
// with their 95% prediction-interval half-widths and derived thresholds.
type CalibrationReport struct {
	BusMHz           float64 `json:"bus_mhz"`
	BusScale         float64 `json:"bus_scale"`
	RowWidthBytes    int     `json:"row_width_bytes"`
	MemTRCD          float64 `json:"mem_trcd_bus_cycles"`
	MemTRP           float64 `json:"mem_trp_bus_cycles"`
	PCMTRCD          float64 `json:"pcm_trcd_bus_cycles"`
	PCMTRP           float64 `json:"pcm_trp_bus_cycles"`
	CPUMHz           float64 `json:"cpu_mhz"`
	Trials           int     `json:"trials"`
	TickReadOverhead uint64  `json:"tick_read_overhead"`
	MeanCachedRead   uint64  `json:"mean_cached_read_cycles"`
	MeanUncachedRead uint64  `json:"mean_uncached_read_cycles"`

	Rows []SectorRow `json:"rows"`
}

// SectorRow is one n-sector row of the calibration table.
type SectorRow struct {
	N                  int        `json:"n"`
	CopyOverheadMean   [6]uint64  `json:"copy_overhead_mean"`
	CopyOverheadPI95   [6]float64 `json:"copy_overhead_pi95_halfwidth"`
	ThresholdReadCache uint64     `json:"threshold_read_cached"`
	ThresholdWriteLo   uint64     `json:"threshold_write_lo"`
	LatencyRead        uint64     `json:"pcm_latency_read"`
	LatencyWrite       uint64     `json:"pcm_latency_write"`
	DeltaRead          int64      `json:"pcm_delta_read"`
	DeltaWrite         int64      `json:"pcm_delta_write"`
}

// BuildCalibrationReport assembles a CalibrationReport from a completed
// calibration table and its derived PCM latency table.
func BuildCalibrationReport(cal *calib.Table, pcmTable *pcm.Table, cpuMHz float64, trials int) CalibrationReport {
	r := CalibrationReport{
		BusMHz:           cal.BusMHz,
		BusScale:         cal.BusScale,
		RowWidthBytes:    cal.RowWidthBytes,
		MemTRCD:          cal.MemTRCD,
		MemTRP:           cal.MemTRP,
		CPUMHz:           cpuMHz,
		Trials:           trials,
		TickReadOverhead: cal.TickReadOverhead,
	}
	if pcmTable != nil {
		r.PCMTRCD = pcmTable.PCMTRCD
		r.PCMTRP = pcmTable.PCMTRP
	}
	if cal.NMax > 0 {
		r.MeanUncachedRead = cal.OverheadRead[calib.Uncached][0]
		r.MeanCachedRead = cal.OverheadRead[calib.Cached][0]
	}

	for n := 1; n <= cal.NMax; n++ {
		row := SectorRow{
			N:                  n,
			ThresholdReadCache: cal.ThresholdReadCached[n-1],
			ThresholdWriteLo:   cal.ThresholdWriteLo[n-1],
		}
		for i, sc := range scenarioLabels {
			row.CopyOverheadMean[i] = cal.OverheadCopy[sc.src][sc.dst][n-1]
			variance := cal.VarianceCopy[sc.src][sc.dst][n-1]
			row.CopyOverheadPI95[i] = numeric.PredictionHalfWidth95(variance, trials)
		}
		if pcmTable != nil && n <= pcmTable.NMax {
			row.LatencyRead = pcmTable.Latency[pcm.Read][n-1]
			row.LatencyWrite = pcmTable.Latency[pcm.Write][n-1]
			row.DeltaRead = pcmTable.Delta[pcm.Read][n-1]
			row.DeltaWrite = pcmTable.Delta[pcm.Write][n-1]
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

// WriteText renders the report as a plain-text tabwriter-aligned block,
// matching the teacher's newTable()/printTableHeader() idiom.
func (r CalibrationReport) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "PCM Simulator Calibration Report\n")
	fmt.Fprintf(tw, "bus\t%.1f MHz (scale %.2f)\n", r.BusMHz, r.BusScale)
	fmt.Fprintf(tw, "row width\t%d bytes\n", r.RowWidthBytes)
	fmt.Fprintf(tw, "tRCD/tRP (mem)\t%.1f / %.1f bus cycles\n", r.MemTRCD, r.MemTRP)
	fmt.Fprintf(tw, "tRCD/tRP (pcm)\t%.1f / %.1f bus cycles\n", r.PCMTRCD, r.PCMTRP)
	fmt.Fprintf(tw, "cpu\t%.1f MHz\n", r.CPUMHz)
	fmt.Fprintf(tw, "trials\t%d\n", r.Trials)
	fmt.Fprintf(tw, "tick read overhead\t%d cycles\n", r.TickReadOverhead)
	fmt.Fprintf(tw, "mean uncached read\t%d cycles\n", r.MeanUncachedRead)
	fmt.Fprintf(tw, "mean cached read\t%d cycles\n", r.MeanCachedRead)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "n\tuncached->uncached\tuncached->cached\tcached->uncached\tcached->cached\tcached->wb\twb->cached\tthr_read\tthr_write_lo\tlat_read\tlat_write")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			row.N,
			row.CopyOverheadMean[0], row.CopyOverheadMean[1], row.CopyOverheadMean[2],
			row.CopyOverheadMean[3], row.CopyOverheadMean[4], row.CopyOverheadMean[5],
			row.ThresholdReadCache, row.ThresholdWriteLo, row.LatencyRead, row.LatencyWrite,
		)
	}
	return tw.Flush()
}

// WriteJSON renders the report as indented JSON, matching the teacher's
// encoding/json usage for its per-tick rows.
func (r CalibrationReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// DeviceReport captures one device's lifetime statistics, printed at
// Close per the data model's "destroyed by a matching free that first
// prints statistics" lifecycle.
type DeviceReport struct {
	DeviceID       int    `json:"device_id"`
	CapacitySector uint64 `json:"capacity_sectors"`
	ReadsCached    uint64 `json:"reads_cached"`
	ReadsUncached  uint64 `json:"reads_uncached"`
	WritesCached   uint64 `json:"writes_cached"`
	WritesUncached uint64 `json:"writes_uncached"`
}

// WriteText renders the device report as a short plain-text block.
func (r DeviceReport) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "device\t#%d\n", r.DeviceID)
	fmt.Fprintf(tw, "capacity\t%d sectors\n", r.CapacitySector)
	fmt.Fprintf(tw, "reads\t%d cached / %d uncached\n", r.ReadsCached, r.ReadsUncached)
	fmt.Fprintf(tw, "writes\t%d cached / %d uncached\n", r.WritesCached, r.WritesUncached)
	return tw.Flush()
}

// WriteJSON renders the device report as indented JSON.
func (r DeviceReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
