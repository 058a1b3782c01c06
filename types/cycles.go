package types

import "fmt"

// Cycles is a processor-tick count, the unit the stall loop and calibration
// tables traffic in.
type Cycles uint64

// Seconds converts c to wall-clock seconds assuming the given CPU frequency.
func (c Cycles) Seconds(cpuMHz float64) float64 {
	if cpuMHz <= 0 {
		return 0
	}
	return float64(c) / (cpuMHz * 1e6)
}

// Micros converts c to microseconds assuming the given CPU frequency.
func (c Cycles) Micros(cpuMHz float64) float64 {
	if cpuMHz <= 0 {
		return 0
	}
	return float64(c) / cpuMHz
}

func (c Cycles) String() string { return fmt.Sprintf("%d cycles", uint64(c)) }

// CycleDelta is a signed cycle quantity: the difference between a modeled
// PCM cost and a measured DRAM cost, or a running budget, which may go
// negative.
type CycleDelta int64

// Seconds converts d to wall-clock seconds assuming the given CPU frequency.
func (d CycleDelta) Seconds(cpuMHz float64) float64 {
	if cpuMHz <= 0 {
		return 0
	}
	return float64(d) / (cpuMHz * 1e6)
}

func (d CycleDelta) String() string { return fmt.Sprintf("%+d cycles", int64(d)) }
