// Package tileerr defines the failure taxonomy shared by every tile engine
// component: the codec, the reader, the cache, the fetcher, and the façade.
package tileerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure categories the engine can produce. Callers
// should branch on Kind rather than on error string content.
type Kind string

const (
	// OutOfBounds means a latitude/longitude (or in-tile fraction) fell
	// outside the domain the operation accepts.
	OutOfBounds Kind = "out_of_bounds"
	// InvalidFileSize means a tile file's length matched neither the
	// SRTM1 nor the SRTM3 byte count.
	InvalidFileSize Kind = "invalid_file_size"
	// TileNotAvailable means a tile identity resolved to neither a local
	// file nor a successful fetch.
	TileNotAvailable Kind = "tile_not_available"
	// DownloadFailed means the fetcher's HTTP or S3 transport, or its
	// decompression step, failed.
	DownloadFailed Kind = "download_failed"
	// IoError means an underlying filesystem or memory-mapping call
	// failed for a reason unrelated to the tile's contents.
	IoError Kind = "io_error"
	// InvalidFilename means a tile name failed the grammar in §6.
	InvalidFilename Kind = "invalid_filename"
)

// Error is the concrete error type returned by every tile engine component.
// It carries a Kind plus enough context (tile identity and/or coordinate)
// to identify what failed, and wraps an optional underlying cause.
type Error struct {
	Kind     Kind
	Identity string // tile identity, when known, e.g. "N35E138"
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	switch {
	case e.Identity != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s (tile %s): %v", e.Kind, e.Message, e.Identity, e.Cause)
	case e.Identity != "":
		return fmt.Sprintf("%s: %s (tile %s)", e.Kind, e.Message, e.Identity)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, ignoring its
// Message, Identity and Cause, so errors.Is(err, tileerr.New(kind, ""))
// matches any error of that kind. Use KindOf to read the Kind directly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithIdentity returns a copy of e annotated with a tile identity.
func (e *Error) WithIdentity(identity string) *Error {
	cp := *e
	cp.Identity = identity
	return &cp
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, and
// reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
