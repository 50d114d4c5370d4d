package store

import "errors"

var (
	// ErrProbeUnavailable marks a transient failure reading the version
	// signal. The detector skips the cycle instead of treating it as a
	// change or a crash.
	ErrProbeUnavailable = errors.New("version probe unavailable")

	// ErrProjectNotFound is returned when a project is not in the registry
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectExists is returned when creating a project that already exists
	ErrProjectExists = errors.New("project already exists")

	// ErrUnknownSample is returned for operations on a missing sample
	ErrUnknownSample = errors.New("unknown sample")

	// ErrSampleDeleted is returned for mutations on a soft-deleted sample
	ErrSampleDeleted = errors.New("sample is deleted")

	// ErrUnknownParameter is returned when a parameter definition is missing
	ErrUnknownParameter = errors.New("unknown parameter")
)
