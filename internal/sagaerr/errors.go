// Package sagaerr classifies the four error kinds from the saga
// protocol (validation, not-found, transient, terminal) so that HTTP
// handlers and the outbox publisher can react differently to each
// without string-matching driver errors everywhere.
package sagaerr

import "errors"

// Kind is one of the four error kinds the protocol distinguishes.
type Kind int

const (
	// KindValidation: malformed request, rejected and never retried.
	KindValidation Kind = iota
	// KindNotFound: SagaLog or a dependent row is missing; the caller
	// treats this as "moot", not as transport failure.
	KindNotFound
	// KindTransient: DB unavailable, HTTP timeout, network error; safe
	// to retry up to MaxRetries.
	KindTransient
	// KindTerminal: storage invariant violation, decode failure; the
	// request aborts and is logged, but the process keeps running.
	KindTerminal
)

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func Validation(err error) error { return &Error{Kind: KindValidation, Err: err} }
func NotFound(err error) error   { return &Error{Kind: KindNotFound, Err: err} }
func Transient(err error) error  { return &Error{Kind: KindTransient, Err: err} }
func Terminal(err error) error   { return &Error{Kind: KindTerminal, Err: err} }

// KindOf extracts the Kind of err, defaulting to KindTerminal for
// errors that were never classified (an unclassified error is treated
// as the least forgiving kind: log it, don't silently retry forever).
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTerminal
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
