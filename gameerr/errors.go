// Package gameerr defines the error taxonomy surfaced by the engine
// framework to callers, per the core's error handling design.
package gameerr

import "fmt"

// Kind classifies a core-level failure so callers can decide whether
// to retry, surface to the player, or page an operator.
type Kind uint8

const (
	// Busy means the room lock was not acquired within the timeout.
	// The caller may retry.
	Busy Kind = iota + 1
	// NotFound means the room does not exist.
	NotFound
	// IllegalAction means the action name is unknown or disallowed
	// in the current state (not your turn, game ended, tile already
	// revealed, and similar).
	IllegalAction
	// InvalidArgument means an out-of-range index or a payload that
	// failed to parse.
	InvalidArgument
	// Corrupt means the state could not be decoded and no migration
	// applied. Non-retryable; operator intervention is expected.
	Corrupt
	// Conflict is reserved for the outer economy service's concurrent
	// wallet updates. The engine core never constructs it.
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Busy:
		return "Busy"
	case NotFound:
		return "NotFound"
	case IllegalAction:
		return "IllegalAction"
	case InvalidArgument:
		return "InvalidArgument"
	case Corrupt:
		return "Corrupt"
	case Conflict:
		return "Conflict"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type this package returns. It carries a
// Kind so callers can branch with errors.Is against the sentinel
// values below, and an optional wrapped cause for logging.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, gameerr.ErrBusy) work directly against the
// Kind sentinels defined below, without requiring callers to unwrap an
// *Error by hand.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// sentinel returns a bare, comparable *Error of the given kind, used
// both as the package-level constants below and as errors.Is targets.
func sentinel(k Kind) *Error { return &Error{Kind: k} }

// Sentinel values for errors.Is comparisons, e.g. errors.Is(err, gameerr.ErrBusy).
var (
	ErrBusy            = sentinel(Busy)
	ErrNotFound        = sentinel(NotFound)
	ErrIllegalAction   = sentinel(IllegalAction)
	ErrInvalidArgument = sentinel(InvalidArgument)
	ErrCorrupt         = sentinel(Corrupt)
	ErrConflict        = sentinel(Conflict)
)

// New builds an *Error of the given kind with a formatted message.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Retryable reports whether the caller may reasonably retry the
// operation that produced this error.
func Retryable(err error) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == Busy
	}
	return false
}

// as is a tiny local errors.As to avoid importing errors just for one call site.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
