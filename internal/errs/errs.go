package errs

import "errors"

// ErrEngineClosed is returned when an operation is attempted on a closed engine.
var ErrEngineClosed = errors.New("lsmkv: engine is closed")

// ErrInvalidKey is returned for an empty key, which the data model forbids.
var ErrInvalidKey = errors.New("lsmkv: key must be non-empty")

// baseError is the common shape behind every structured error this package
// produces: a cause, a message, a code, and lazily-allocated details.
type baseError struct {
	cause   error
	message string
	code    Code
	details map[string]any
}

func newBase(cause error, code Code, msg string) *baseError {
	return &baseError{cause: cause, code: code, message: msg}
}

func (b *baseError) Error() string {
	if b.cause == nil {
		return b.message
	}
	return b.message + ": " + b.cause.Error()
}

func (b *baseError) Unwrap() error { return b.cause }

func (b *baseError) Code() Code { return b.code }

func (b *baseError) Details() map[string]any { return b.details }

func (b *baseError) withDetail(key string, value any) {
	if b.details == nil {
		b.details = make(map[string]any)
	}
	b.details[key] = value
}

// StorageError reports a failure reading, writing, or unlinking a segment or
// manifest file.
type StorageError struct {
	*baseError
	path   string
	offset int64
}

// NewStorageError builds a StorageError wrapping cause with msg.
func NewStorageError(cause error, code Code, msg string) *StorageError {
	return &StorageError{baseError: newBase(cause, code, msg)}
}

// WithPath records which file was being processed.
func (e *StorageError) WithPath(path string) *StorageError {
	e.path = path
	e.withDetail("path", path)
	return e
}

// WithOffset records the byte offset within the file where the failure occurred.
func (e *StorageError) WithOffset(offset int64) *StorageError {
	e.offset = offset
	e.withDetail("offset", offset)
	return e
}

// Path returns the file path associated with the error, if any.
func (e *StorageError) Path() string { return e.path }

// Offset returns the byte offset associated with the error, if any.
func (e *StorageError) Offset() int64 { return e.offset }

// ManifestError reports a malformed or unencodable manifest: a bad CURRENT
// pointer, a manifest file that fails to decode, or a snapshot that fails
// to encode.
type ManifestError struct {
	*baseError
	level int
}

// NewManifestError builds a ManifestError wrapping cause with msg.
func NewManifestError(cause error, code Code, msg string) *ManifestError {
	return &ManifestError{baseError: newBase(cause, code, msg)}
}

// WithLevel records which level the invariant violation concerned.
func (e *ManifestError) WithLevel(level int) *ManifestError {
	e.level = level
	e.withDetail("level", level)
	return e
}

// Level returns the level associated with the error.
func (e *ManifestError) Level() int { return e.level }
