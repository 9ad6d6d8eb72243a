package tcd

import "github.com/pkg/errors"

// Error taxonomy. Everything the decoder returns wraps one of these
// sentinels, so callers can classify failures with errors.Is regardless
// of how much context was layered on top. Underlying I/O failures (open,
// read, seek) propagate as the OS-level errors themselves.
var (
	// ErrFormat means the file violates the TCD structural contract:
	// a required header key is missing, a table is malformed, or a
	// record field holds a structurally impossible value.
	ErrFormat = errors.New("tcd: malformed file")

	// ErrTruncated means the byte source ended in the middle of a field.
	ErrTruncated = errors.New("tcd: truncated file")

	// ErrInvalidArgument means programmatic misuse, e.g. a bit width
	// outside 1..32.
	ErrInvalidArgument = errors.New("tcd: invalid argument")

	// ErrNotFound means a named station or constituent does not exist
	// in the database. The library lookups return nil for a miss; this
	// sentinel is for callers that need a miss as an error.
	ErrNotFound = errors.New("tcd: not found")
)
