// Command pcmsim drives the PCM block-device simulator from the command
// line: calibrate once, allocate one or more devices against the resulting
// table, and optionally run a synthetic exerciser against them through the
// in-memory reference Queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/pcmsim/blockio"
	"github.com/ja7ad/pcmsim/internal/calib"
	"github.com/ja7ad/pcmsim/internal/pcm"
	"github.com/ja7ad/pcmsim/internal/ticks"
	"github.com/ja7ad/pcmsim/pcmdisk"
	"github.com/ja7ad/pcmsim/report"
	"github.com/ja7ad/pcmsim/types"
)

type opts struct {
	devices      int
	capacityMB   int
	calibOnly    bool
	jsonOutput   bool
	exerciseTime time.Duration
	cpuMHz       float64
	ignoreL2     bool
	groundTruth  bool
	checkAcc     bool
}

// defaultCapacityMB mirrors the reference module parameter's default: 128
// MB on a 32-bit host, 1024 MB on 64-bit, per the operator-surface spec.
func defaultCapacityMB() int {
	if strconv.IntSize == 32 {
		return 128
	}
	return 1024
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "pcmsim",
		Short: "Phase-change memory block-device timing simulator",
		Long: `pcmsim calibrates DRAM read/copy timings on the host, derives PCM-scale
read and write latencies from them, and exposes one or more RAM-backed block
devices whose I/O completions are artificially stretched to match those
derived latencies via a CPU-bound stall loop.

* GitHub: https://github.com/ja7ad/pcmsim

Examples:
  pcmsim --calibrate-only
  pcmsim --devices 2 --capacity-mb 64 --exercise 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}

	root.Flags().IntVar(&o.devices, "devices", 1, "number of simulated devices to allocate")
	root.Flags().IntVar(&o.capacityMB, "capacity-mb", defaultCapacityMB(), "capacity of each device, in megabytes (128 on a 32-bit host, 1024 on 64-bit)")
	root.Flags().BoolVar(&o.calibOnly, "calibrate-only", false, "run calibration, print the report, and exit")
	root.Flags().BoolVar(&o.jsonOutput, "json", false, "emit reports as JSON instead of text tables")
	root.Flags().DurationVar(&o.exerciseTime, "exercise", 0, "run a synthetic read/write exerciser for this long (0 = skip)")
	root.Flags().Float64Var(&o.cpuMHz, "cpu-mhz", 2400, "assumed CPU frequency used to derive bus scale")
	root.Flags().BoolVar(&o.ignoreL2, "ignore-l2", false, "documented no-op: never changes classification")
	root.Flags().BoolVar(&o.groundTruth, "ground-truth", false, "documented no-op: never changes classification")
	root.Flags().BoolVar(&o.checkAcc, "check-accuracy", false, "documented no-op: never doubles calibration trials")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	if o.devices <= 0 {
		return fmt.Errorf("--devices must be > 0")
	}
	if o.capacityMB <= 0 {
		return fmt.Errorf("--capacity-mb must be > 0")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	clk := ticks.NewWallClock(o.cpuMHz)

	calCfg := calib.DefaultConfig()
	calCfg.CPUMHz = o.cpuMHz
	calCfg.Logger = logger

	logger.Info("starting calibration", "cpu_mhz", o.cpuMHz, "trials", calCfg.Trials)
	cal, err := calib.Calibrate(ctx, clk, calCfg)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}
	pcmTable := pcm.Derive(cal, pcm.DefaultParams())

	rep := report.BuildCalibrationReport(cal, pcmTable, o.cpuMHz, calCfg.Trials)
	if err := writeReport(rep, o.jsonOutput); err != nil {
		return fmt.Errorf("write calibration report: %w", err)
	}

	if o.calibOnly {
		return nil
	}

	devCfg := pcmdisk.Config{
		IgnoreL2:      o.ignoreL2,
		GroundTruth:   o.groundTruth,
		CheckAccuracy: o.checkAcc,
		Logger:        logger,
	}

	devices := make([]*pcmdisk.Device, 0, o.devices)
	queues := make([]*blockio.MemQueue, 0, o.devices)
	defer func() {
		for i, d := range devices {
			dr := report.DeviceReport{
				DeviceID:       d.ID(),
				CapacitySector: uint64(d.CapacitySectors()),
			}
			s := d.Stats()
			dr.ReadsCached, dr.ReadsUncached = s.ReadsCached, s.ReadsUncached
			dr.WritesCached, dr.WritesUncached = s.WritesCached, s.WritesUncached
			if err := writeDeviceReport(dr, o.jsonOutput); err != nil {
				logger.Warn("write device report", "device", i, "err", err)
			}
			_ = d.Close()
		}
	}()

	for i := 0; i < o.devices; i++ {
		d, err := pcmdisk.Allocate(o.capacityMB, cal, pcmTable, clk, devCfg)
		if err != nil {
			return fmt.Errorf("allocate device %d: %w", i, err)
		}
		devices = append(devices, d)
		queues = append(queues, blockio.NewMemQueue())
		logger.Info("device allocated", "device_id", d.ID(), "capacity_mb", o.capacityMB)
	}

	if o.exerciseTime <= 0 {
		return nil
	}
	return exercise(ctx, devices, queues, o.exerciseTime, logger)
}

// exercise drives each allocated device through its own Serve loop while a
// generator goroutine submits randomized read/write requests until the
// context or the given duration expires.
func exercise(ctx context.Context, devices []*pcmdisk.Device, queues []*blockio.MemQueue, dur time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	errs := make(chan error, len(devices))
	for i, d := range devices {
		d, q := d, queues[i]
		go func() { errs <- d.Serve(ctx, q) }()
		go generateTraffic(ctx, q, d.CapacitySectors())
	}

	for range devices {
		if err := <-errs; err != nil {
			logger.Warn("device serve loop exited", "err", err)
		}
	}
	return nil
}

// generateTraffic submits randomly-placed single-sector
// read/write requests until ctx is cancelled, approximating the reference
// workload a real block-layer client would produce.
func generateTraffic(ctx context.Context, q *blockio.MemQueue, capacity types.Sectors) {
	rng := rand.New(rand.NewPCG(1, 2))
	for {
		select {
		case <-ctx.Done():
			q.Close()
			return
		default:
		}

		buf := make([]byte, types.SectorSize)
		sector := types.Sectors(rng.Uint64N(uint64(capacity)))
		dir := blockio.Read
		if rng.Uint64N(2) == 0 {
			dir = blockio.Write
		}
		q.Submit(blockio.Request{
			Direction: dir,
			Segments:  []blockio.Segment{{Data: buf, StartSector: sector}},
		})
		time.Sleep(time.Millisecond)
	}
}

func writeReport(rep report.CalibrationReport, asJSON bool) error {
	if asJSON {
		return rep.WriteJSON(os.Stdout)
	}
	return rep.WriteText(os.Stdout)
}

func writeDeviceReport(rep report.DeviceReport, asJSON bool) error {
	if asJSON {
		return rep.WriteJSON(os.Stdout)
	}
	return rep.WriteText(os.Stdout)
}
