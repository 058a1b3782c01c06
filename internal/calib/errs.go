package calib

import "errors"

var (
	// ErrAllocationFailed means the calibrator could not obtain enough
	// probe buffers to run a single trial.
	ErrAllocationFailed = errors.New("calib: allocation failed")

	// ErrCalibrationInconsistent means the monotonicity sanity check on
	// read overheads never converged after NMax passes. Calibrate does
	// not fail on this: it logs a warning and proceeds with the
	// last-measured table, matching the reference implementation's
	// printk-and-continue behavior.
	ErrCalibrationInconsistent = errors.New("calib: overhead table not monotonic")
)
