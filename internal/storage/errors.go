// Package storage provides the shared error taxonomy and options for the
// mvstore storage engine.
package storage

import (
	"github.com/cockroachdb/errors"
)

// Error kinds surfaced by the storage core. Callers match them with
// errors.Is; producers attach context with errors.Wrapf or errors.Mark.
var (
	// ErrInvalidArgument reports a position-encoding input that exceeds its
	// field width, or another caller-side misuse of the API.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTruncatedData reports a varint, fixed-width field or page body that
	// ends before its terminator or declared length.
	ErrTruncatedData = errors.New("truncated data")

	// ErrCorruptPage reports a checksum mismatch or a structural invariant
	// violation found while decoding a page or chunk.
	ErrCorruptPage = errors.New("corrupt page")

	// ErrConcurrentUpdate reports a commit-time write conflict. The whole
	// transaction may be retried by the caller.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// Errors shared by the engine and its session layer.
var (
	ErrEngineClosed    = errors.New("engine is closed")
	ErrReadOnly        = errors.New("engine is read-only")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is not active")
)

// InvalidArgumentf returns an ErrInvalidArgument carrying a formatted detail.
func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

// Truncatedf returns an ErrTruncatedData carrying a formatted detail.
func Truncatedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrTruncatedData)
}

// Corruptf returns an ErrCorruptPage carrying a formatted detail.
func Corruptf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruptPage)
}
