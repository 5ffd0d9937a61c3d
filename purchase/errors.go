package purchase

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Every *Error matches exactly one of them with errors.Is.
var (
	// ErrLookupUnavailable means the ledger node could not be reached
	// while reading state. Retry after backoff.
	ErrLookupUnavailable = errors.New("lookup unavailable")

	// ErrInvalidParameters means the request or the network parameters
	// cannot produce valid transactions. Not retryable as is.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrSigningRejected means the wallet owner declined. A retry needs new
	// user intent.
	ErrSigningRejected = errors.New("signing rejected")

	// ErrSigningUnavailable means the wallet could not be reached.
	ErrSigningUnavailable = errors.New("signing unavailable")

	// ErrSubmissionRejected means the network refused the broadcast or
	// evicted the transaction from its pool.
	ErrSubmissionRejected = errors.New("submission rejected")

	// ErrConfirmationTimeout means a submitted transaction did not resolve
	// within the polling bound. Do not resubmit without reconciling.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrSessionAlreadyActive means another purchase for the account is in
	// flight.
	ErrSessionAlreadyActive = errors.New("session already active")

	// ErrCancelled means the caller stopped waiting. When transactions
	// were submitted they keep resolving in the background.
	ErrCancelled = errors.New("purchase cancelled")
)

// Error is a purchase failure together with where it happened.
type Error struct {
	// Kind is one of the Err* failure kinds.
	Kind error

	// State is the state the failure occurred in.
	State State

	// LastCompleted is the last state the flow finished.
	LastCompleted State

	// Cause is the underlying failure.
	Cause error

	// Submitted lists transactions that reached the network and whose
	// outcome is not known. They must be reconciled before any retry.
	Submitted []string
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%v in %v (last completed %v)", e.Kind, e.State,
		e.LastCompleted)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if len(e.Submitted) > 0 {
		fmt.Fprintf(&b, " [unresolved: %s]",
			strings.Join(e.Submitted, ", "))
	}

	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// SafeToRetry reports whether a fresh purchase may be started without first
// reconciling on-chain state.
func (e *Error) SafeToRetry() bool {
	return len(e.Submitted) == 0
}

// Retryable reports whether retrying can succeed without changed input or
// new user intent.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrLookupUnavailable, ErrSubmissionRejected,
		ErrSigningUnavailable, ErrSessionAlreadyActive, ErrCancelled:

		return e.SafeToRetry()

	default:
		return false
	}
}

// newError builds an *Error, copying submitted ids.
func newError(kind error, state, last State, cause error,
	submitted ...string) *Error {

	var unresolved []string
	if len(submitted) > 0 {
		unresolved = append(unresolved, submitted...)
	}

	return &Error{
		Kind:          kind,
		State:         state,
		LastCompleted: last,
		Cause:         cause,
		Submitted:     unresolved,
	}
}

// Configuration errors.
var (
	// ErrBridgeRequired is returned when no chain bridge is configured.
	ErrBridgeRequired = errors.New("chain bridge is required")

	// ErrInspectorRequired is returned when no holding inspector is
	// configured.
	ErrInspectorRequired = errors.New("holding inspector is required")

	// ErrBuilderRequired is returned when no transaction builder is
	// configured.
	ErrBuilderRequired = errors.New("transaction builder is required")

	// ErrSignerRequired is returned when no signer is configured.
	ErrSignerRequired = errors.New("signer is required")

	// ErrAppIDRequired is returned when no sale application is configured.
	ErrAppIDRequired = errors.New("sale application id is required")

	// ErrNotStarted is returned when a purchase is requested before Start
	// or after Stop.
	ErrNotStarted = errors.New("controller not started")
)
