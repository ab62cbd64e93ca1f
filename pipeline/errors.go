package pipeline

import "errors"

var (
	// ErrNilDevice names a host pipeline creation attempted without a
	// device. No function in this package returns it: Build has no
	// error result.
	ErrNilDevice = errors.New("pipeline: device is nil")

	// ErrNoStages names a graphics build with every stage empty (a
	// compute-only program should use ComputeKey instead). No function
	// in this package returns it: buildGraphics logs that case at Warn
	// level and still marks the pipeline built.
	ErrNoStages = errors.New("pipeline: graphics pipeline has no non-empty stages")

	// ErrStaleDiskVersion is returned by LoadDiskResources when the
	// on-disk cache's version header does not match CacheVersion: the
	// caller should treat the file as empty and start fresh rather
	// than fail outright.
	ErrStaleDiskVersion = errors.New("pipeline: on-disk cache version mismatch")
)
