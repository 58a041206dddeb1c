package hier

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies engine errors per spec.md §7. It is a taxonomy of
// failure kinds, not a type hierarchy: every error the engine returns
// to a caller carries exactly one Kind.
type Kind int

const (
	// KindNotFound: path or id cannot be resolved locally or remotely.
	KindNotFound Kind = iota
	// KindExists: attempted to add a name that already has a live
	// entry and same-name siblings are not allowed for it.
	KindExists
	// KindInvalid: malformed name/path, SNS-index on a final property
	// segment, or an illegal move (root, cycle).
	KindInvalid
	// KindStale: the target's status is STALE_*.
	KindStale
	// KindTransport: a wrapped error from the remote provider.
	KindTransport
	// KindInternal: an invariant violation. Non-recoverable.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindExists:
		return "exists"
	case KindInvalid:
		return "invalid"
	case KindStale:
		return "stale"
	case KindTransport:
		return "transport"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by the engine. Use ErrKind(err)
// to classify an error returned from any operation in this package.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Unwrap lets errors.Is/errors.As reach the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}

// ErrKind returns the Kind of err, or KindInternal if err is not one of
// ours (callers should treat a non-engine error defensively).
func ErrKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// IsNotFound, IsStale, IsExists are convenience predicates mirroring the
// ones rclone's backend/cache builds on top of github.com/pkg/errors.
func IsNotFound(err error) bool { return err != nil && ErrKind(err) == KindNotFound }
func IsStale(err error) bool    { return err != nil && ErrKind(err) == KindStale }
func IsExists(err error) bool   { return err != nil && ErrKind(err) == KindExists }
func IsInvalid(err error) bool  { return err != nil && ErrKind(err) == KindInvalid }
func IsTransport(err error) bool { return err != nil && ErrKind(err) == KindTransport }

// NewNotFoundError builds a KindNotFound error, exported for fake
// Provider implementations (see hiertest) that need to return the same
// error shape the engine itself returns.
func NewNotFoundError(format string, args ...interface{}) error {
	return newErr(KindNotFound, format, args...)
}

// invariant panics on an internal invariant violation. These are
// assertion failures, not runtime conditions (spec.md §7): a caller
// should never recover from one in production use.
func invariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(newErr(KindInternal, format, args...))
	}
}
