package pcmdisk

import "errors"

var (
	// ErrCapacityExceeded is returned when a request's starting sector
	// plus its length runs past the device's capacity. No state changes
	// before this error is returned.
	ErrCapacityExceeded = errors.New("pcmdisk: capacity exceeded")

	// ErrAllocationFailed is returned by Allocate when asked for a
	// non-positive capacity. Unlike the calibrator's ErrAllocationFailed
	// (which degrades gracefully), this is fatal to Allocate.
	ErrAllocationFailed = errors.New("pcmdisk: allocation failed")

	// ErrUnsupportedIoctl is returned by Device.Control, the management
	// path, for any control code the core does not implement — which is
	// every one of them, matching the reference's unconditional -ENOTTY.
	ErrUnsupportedIoctl = errors.New("pcmdisk: no such control")
)
