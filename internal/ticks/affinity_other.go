//go:build !linux

package ticks

import "runtime"

// PinCurrentThread locks the calling goroutine to its OS thread. Non-Linux
// platforms have no portable sched_setaffinity equivalent exposed through
// golang.org/x/sys, so thread pinning is the best available guard here.
func PinCurrentThread() (unlock func()) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}
