// Package errs defines the error taxonomy shared across the ledger core.
//
// Four of the five kinds are sentinels meant for errors.Is checks; Conflict
// additionally carries structure (which row moved, whether a retry can
// succeed) via ConflictError.
package errs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrValidation marks malformed input (non-positive amount, too few
	// entries, currency mismatch). Always a caller bug, never retried.
	ErrValidation = errors.New("validation_error")
	// ErrInvariant marks a broken domain invariant (unbalanced entry set,
	// self-settlement). Always a caller bug.
	ErrInvariant = errors.New("invariant_violation")
	// ErrNotFound marks a missing account/ledger/transaction/entry, including
	// tenancy mismatches masked as not-found.
	ErrNotFound = errors.New("not_found")
	// ErrConflict marks a concurrent-write or state-machine conflict. Use
	// errors.As with *ConflictError (or IsRetryable) to distinguish the
	// retryable lock-version race from terminal conflicts.
	ErrConflict = errors.New("conflict")
	// ErrInternal wraps anything unrecognized from the backing store.
	ErrInternal = errors.New("internal")
)

// ConflictError names the contended resource and tells callers whether
// retrying can succeed. A lost lock-version race is retryable; an integrity
// fault (a conditioned write touching more than one row) or a settlement
// mutation outside drafting is not.
type ConflictError struct {
	Resource  string
	ID        uuid.UUID
	Retryable bool
	Reason    string
}

func (e *ConflictError) Error() string {
	kind := "conflict"
	if e.Retryable {
		kind = "retryable conflict"
	}
	if e.ID == uuid.Nil {
		return fmt.Sprintf("%s on %s: %s", kind, e.Resource, e.Reason)
	}
	return fmt.Sprintf("%s on %s %s: %s", kind, e.Resource, e.ID, e.Reason)
}

// Is lets errors.Is(err, ErrConflict) match any ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// RetryableConflict reports a lost optimistic-lock race on the given resource.
func RetryableConflict(resource string, id uuid.UUID, reason string) error {
	return &ConflictError{Resource: resource, ID: id, Retryable: true, Reason: reason}
}

// TerminalConflict reports a conflict that a retry cannot resolve.
func TerminalConflict(resource string, id uuid.UUID, reason string) error {
	return &ConflictError{Resource: resource, ID: id, Retryable: false, Reason: reason}
}

// IsRetryable reports whether err is a conflict worth retrying with backoff.
func IsRetryable(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Retryable
}

// NotFound wraps ErrNotFound with the resource kind and id that were missing.
func NotFound(resource string, id uuid.UUID) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
}

// Validation wraps ErrValidation with a human-readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Invariant wraps ErrInvariant with a human-readable reason.
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// Internal wraps an unrecognized store error with operation context so the
// ids involved survive into logs.
func Internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
