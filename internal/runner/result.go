// Package runner launches the target subprocess once per fuzzing iteration,
// enforces the timeout/process-group discipline, and normalizes the result.
package runner

import (
	"time"

	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// Result is one subprocess run's normalized outcome.
type Result struct {
	Status       types.RunStatus
	ExitCode     int
	TimedOut     bool
	Stdout       []byte
	Stderr       []byte
	Coverage     []byte
	Duration     time.Duration
	ArtifactPath string // set when a crash artifact was saved under artifacts/
	Err          error
}

// classify implements spec.md §4.C's status table: timed out -> hang;
// non-null exit != 0 -> crash; null exit (launch failure) -> error; else ok.
func classify(timedOut bool, launchFailed bool, exitCode int) types.RunStatus {
	switch {
	case timedOut:
		return types.StatusHang
	case launchFailed:
		return types.StatusError
	case exitCode != 0:
		return types.StatusCrash
	default:
		return types.StatusOK
	}
}
