// Package errdefs defines the error kinds reported by the dependency checker.
package errdefs

import "errors"

var (
	// ErrInvalidInput is returned for a bad or missing source or conflicting options.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNetwork is returned when a registry or manifest request fails in transit.
	ErrNetwork = errors.New("network error")
	// ErrFileNotFound is returned when a local manifest path does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidManifest is returned when the manifest cannot be parsed or has the wrong shape.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrRegistryUnknownStatus is returned for a registry response that is neither 200 nor 404.
	ErrRegistryUnknownStatus = errors.New("unexpected registry status")
	// ErrEnrichment is returned when the security audit call fails.
	ErrEnrichment = errors.New("vulnerability lookup failed")
	// ErrOutputConflict is returned when the destination exists and overwrite was not confirmed.
	ErrOutputConflict = errors.New("output file already exists")
	// ErrInterrupted is returned when the run is cancelled before the report is complete.
	ErrInterrupted = errors.New("interrupted")
)

// ExitCode maps an error returned from a run to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInterrupted):
		return 130
	default:
		return 1
	}
}
