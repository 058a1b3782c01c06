//go:build linux

package ticks

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its current OS thread and,
// on Linux, additionally pins that thread to whichever single CPU it is
// running on right now via sched_setaffinity. Calibration and the stall loop
// both want a cycle counter that never observes a cross-CPU migration
// mid-measurement; LockOSThread alone stops goroutine-to-thread reassignment
// but the OS scheduler can still migrate the thread itself between cores,
// which is exactly the deal breaker for sharing calibration values across
// CPUs (see Config.GroundTruth and the cross-CPU Open Question in the data
// model). The returned unlock func must be deferred by the caller.
func PinCurrentThread() (unlock func()) {
	runtime.LockOSThread()

	var cpu int
	var set unix.CPUSet
	if c, err := unix.SchedGetcpu(); err == nil {
		cpu = c
	}
	set.Set(cpu)
	// Best effort: if the kernel refuses (containerized environments with
	// restricted cpuset masks commonly do), calibration still proceeds with
	// thread pinning alone.
	_ = unix.SchedSetaffinity(0, &set)

	return runtime.UnlockOSThread
}
