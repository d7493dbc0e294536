package service

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a service error so the transport layer can map it to a
// status code without knowing every sentinel.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindValidationMismatch
	KindInvalidInput
	KindPersistence
	KindPartialSuccess
	KindForbidden
	KindPaymentDeclined
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidationMismatch:
		return "validation_mismatch"
	case KindInvalidInput:
		return "invalid_input"
	case KindPersistence:
		return "persistence_error"
	case KindPartialSuccess:
		return "partial_success"
	case KindForbidden:
		return "forbidden"
	case KindPaymentDeclined:
		return "payment_declined"
	}
	return "unknown"
}

// Error is a service sentinel.  Msg is stable and safe to show to users.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrSeatNotFound       = &Error{KindNotFound, "seat not found"}
	ErrProjectionNotFound = &Error{KindNotFound, "projection not found"}
	ErrTicketNotFound     = &Error{KindNotFound, "ticket not found"}
	ErrUserNotFound       = &Error{KindNotFound, "user not found"}
	ErrAuditoriumNotFound = &Error{KindNotFound, "auditorium not found"}

	ErrProjectionConflict = &Error{KindConflict, "projection overlaps another projection in this auditorium"}
	ErrSeatAlreadyTaken   = &Error{KindConflict, "seat already taken"}
	// ErrProjectionHasTickets blocks deleting a projection, or moving it
	// to another auditorium, once seats are sold.
	ErrProjectionHasTickets = &Error{KindConflict, "projection has sold tickets"}

	ErrAuditoriumMismatch = &Error{KindValidationMismatch, "this seat belongs to a different auditorium"}

	ErrInvalidInput = &Error{KindInvalidInput, "invalid input"}

	ErrTicketLookup   = &Error{KindPersistence, "could not load tickets for this projection"}
	ErrTicketCreation = &Error{KindPersistence, "could not create ticket"}
	ErrLoyaltyCredit  = &Error{KindPersistence, "could not reach the ledger"}
	ErrPersistence    = &Error{KindPersistence, "storage unavailable"}
	ErrPaymentGateway = &Error{KindPersistence, "payment gateway unavailable"}

	ErrBonusPointsFailed = &Error{KindPartialSuccess, "ticket purchased but bonus point assignment failed"}

	ErrTicketNotCancellable = &Error{KindForbidden, "tickets can only be cancelled before the day of the projection"}
	ErrPaymentDeclined      = &Error{KindPaymentDeclined, "payment declined"}
)

// KindOf returns the kind of the first service sentinel in err's chain.
// Deadline and cancellation errors count as persistence failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindPersistence
	}
	return KindUnknown
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		if se.Kind == KindInvalidInput {
			return err.Error()
		}
		return se.Msg
	}
	if KindOf(err) == KindPersistence {
		return ErrPersistence.Msg
	}
	return "internal error"
}

// wrap tags cause with a sentinel while keeping it inspectable.
func wrap(sentinel *Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
