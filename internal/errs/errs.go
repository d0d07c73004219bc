// Package errs defines the failure taxonomy shared by the storage
// engine. Components raise the narrowest applicable sentinel and wrap
// it with context; callers classify with errors.Is or KindOf instead
// of matching error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind labels a failure for callers that need to branch on it, such as
// the HTTP layer mapping errors to status codes.
type Kind int

const (
	// KindInternal is the default for unexpected orchestration
	// failures, including half-completed multi-step operations.
	KindInternal Kind = iota
	// KindNotFound covers unmapped paths, missing object ids, and
	// missing chunks.
	KindNotFound
	// KindAlreadyExists covers create on a path that is mapped.
	KindAlreadyExists
	// KindCorrupted covers checksum or size mismatches on read.
	KindCorrupted
	// KindUnavailable covers a backend that is not configured or not
	// reachable.
	KindUnavailable
	// KindInvalid covers stored values that cannot be decoded per
	// their declared type, and malformed caller input.
	KindInvalid
)

// String returns the wire name of the kind, used in HTTP envelopes.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindCorrupted:
		return "corrupted"
	case KindUnavailable:
		return "unavailable"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrCorrupted     = errors.New("corrupted")
	ErrUnavailable   = errors.New("service unavailable")
	ErrInvalid       = errors.New("invalid")
	ErrInternal      = errors.New("internal error")
)

// KindOf classifies err. Unrecognized errors classify as KindInternal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrCorrupted):
		return KindCorrupted
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	default:
		return KindInternal
	}
}

// NotFound wraps a formatted message so that errors.Is(err, ErrNotFound)
// holds. The message should carry the path or id being looked up.
func NotFound(format string, args ...any) error {
	return kindError(ErrNotFound, format, args...)
}

// AlreadyExists wraps a formatted message as an ErrAlreadyExists.
func AlreadyExists(format string, args ...any) error {
	return kindError(ErrAlreadyExists, format, args...)
}

// Corrupted wraps a formatted message as an ErrCorrupted.
func Corrupted(format string, args ...any) error {
	return kindError(ErrCorrupted, format, args...)
}

// Unavailable wraps a formatted message as an ErrUnavailable.
func Unavailable(format string, args ...any) error {
	return kindError(ErrUnavailable, format, args...)
}

// Invalid wraps a formatted message as an ErrInvalid.
func Invalid(format string, args ...any) error {
	return kindError(ErrInvalid, format, args...)
}

// Internal wraps a formatted message as an ErrInternal.
func Internal(format string, args ...any) error {
	return kindError(ErrInternal, format, args...)
}

func kindError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// Wrap adds operation context to err while preserving its kind for
// errors.Is. It returns nil when err is nil.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
