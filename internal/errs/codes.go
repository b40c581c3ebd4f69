// Package errs provides structured, chainable errors for the storage engine.
//
// The engine distinguishes a handful of failure shapes — plain I/O failures,
// segment corruption, and manifest invariant violations — and each gets its
// own lightweight wrapper around a common base so that callers can branch on
// Code() instead of parsing messages, while still composing with errors.Is
// and errors.As through Unwrap.
package errs

// Code categorizes a failure for programmatic handling.
type Code string

const (
	// CodeIO covers failures reading, writing, seeking, or unlinking files.
	CodeIO Code = "IO_ERROR"

	// CodeInvalidInput covers caller-supplied keys/values that violate the
	// engine's contract (empty key, nil engine, etc).
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeCorruption covers malformed on-disk state discovered while opening
	// or reading a segment: short reads, negative lengths, truncated blocks.
	CodeCorruption Code = "CORRUPTION"

	// CodeInvariant covers a violated internal invariant, such as a
	// manifest snapshot that fails to encode. Manifest.Replace does not
	// check its table arguments against the current levels.
	CodeInvariant Code = "INVARIANT_VIOLATION"
)
