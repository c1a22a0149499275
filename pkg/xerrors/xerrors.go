package xerrors

import (
	"errors"
	iofs "io/fs"
	"os"
)

// Kind classifies xavatar errors.
type Kind int

const (
	KindInvalid Kind = iota
	KindNotFound
	KindStorageUnavailable
	KindGenerationFailed
	KindFetchFailed
	KindInvalidMimeType
	KindCacheWriteFailed
	KindInvalidSourceURL
	KindInternal
)

// ErrEmptyPayload is returned when a cache write is attempted with no bytes.
var ErrEmptyPayload = errors.New("empty payload")

// Error wraps an underlying error with additional metadata.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Kind.String()
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Path != "" {
		base += " " + e.Path
	}
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindStorageUnavailable:
		return "storage unavailable"
	case KindGenerationFailed:
		return "generation failed"
	case KindFetchFailed:
		return "fetch failed"
	case KindInvalidMimeType:
		return "invalid mime type"
	case KindCacheWriteFailed:
		return "cache write failed"
	case KindInvalidSourceURL:
		return "invalid source url"
	case KindInternal:
		return "internal error"
	default:
		return "invalid"
	}
}

// Wrap annotates err with the given metadata. If err is nil, Wrap returns nil.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// E creates a new error with the provided metadata (no underlying error).
func E(kind Kind, op, path string) error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf extracts the Kind from err, walking wrapped errors as needed.
func KindOf(err error) Kind {
	if err == nil {
		return KindInvalid
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, iofs.ErrNotExist),
		errors.Is(err, os.ErrNotExist):
		return KindNotFound
	case errors.Is(err, ErrEmptyPayload):
		return KindCacheWriteFailed
	case errors.Is(err, iofs.ErrPermission):
		return KindStorageUnavailable
	case errors.Is(err, iofs.ErrInvalid):
		return KindInvalid
	default:
		return KindInternal
	}
}
