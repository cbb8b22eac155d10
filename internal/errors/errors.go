package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the type of error
type Kind int

const (
	ErrInternal Kind = iota
	ErrNotFound
	ErrValidation
	ErrConflict
	ErrInvalidInput
	ErrInvalidWindow
	ErrInvalidLimit
	ErrNotActive
	ErrAlreadyVoted
	ErrAlreadyResolved
	ErrAlreadyCancelled
	ErrDuplicateApplication
	ErrLimitReached
	ErrInvalidCandidate
	ErrUnauthorized
	ErrMalformedTimestamp
)

var kindNames = map[Kind]string{
	ErrInternal:             "internal",
	ErrNotFound:             "not_found",
	ErrValidation:           "validation",
	ErrConflict:             "conflict",
	ErrInvalidInput:         "invalid_input",
	ErrInvalidWindow:        "invalid_window",
	ErrInvalidLimit:         "invalid_limit",
	ErrNotActive:            "not_active",
	ErrAlreadyVoted:         "already_voted",
	ErrAlreadyResolved:      "already_resolved",
	ErrAlreadyCancelled:     "already_cancelled",
	ErrDuplicateApplication: "duplicate_application",
	ErrLimitReached:         "limit_reached",
	ErrInvalidCandidate:     "invalid_candidate",
	ErrUnauthorized:         "unauthorized",
	ErrMalformedTimestamp:   "malformed_timestamp",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Expected reports whether the kind is an expected outcome of a repeated or
// concurrent action. These are surfaced to callers but never logged as faults.
func (k Kind) Expected() bool {
	switch k {
	case ErrAlreadyVoted, ErrAlreadyResolved, ErrAlreadyCancelled, ErrDuplicateApplication, ErrNotActive:
		return true
	}
	return false
}

// Error is an application-level error with a kind for classification
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// the standard errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is matching. Their messages are never shown to callers.
var (
	NotFoundErr             = &Error{Kind: ErrNotFound, Message: "not found"}
	InvalidWindowErr        = &Error{Kind: ErrInvalidWindow, Message: "invalid window"}
	InvalidLimitErr         = &Error{Kind: ErrInvalidLimit, Message: "invalid limit"}
	NotActiveErr            = &Error{Kind: ErrNotActive, Message: "not active"}
	AlreadyVotedErr         = &Error{Kind: ErrAlreadyVoted, Message: "already voted"}
	AlreadyResolvedErr      = &Error{Kind: ErrAlreadyResolved, Message: "already resolved"}
	AlreadyCancelledErr     = &Error{Kind: ErrAlreadyCancelled, Message: "already cancelled"}
	DuplicateApplicationErr = &Error{Kind: ErrDuplicateApplication, Message: "duplicate application"}
	LimitReachedErr         = &Error{Kind: ErrLimitReached, Message: "limit reached"}
	InvalidCandidateErr     = &Error{Kind: ErrInvalidCandidate, Message: "invalid candidate"}
	UnauthorizedErr         = &Error{Kind: ErrUnauthorized, Message: "unauthorized"}
	MalformedTimestampErr   = &Error{Kind: ErrMalformedTimestamp, Message: "malformed timestamp"}
)

// KindOf returns the kind of the first *Error in err's chain, or ErrInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrInternal
}

// IsExpected reports whether err belongs to the idempotency-violation class.
func IsExpected(err error) bool {
	return err != nil && KindOf(err).Expected()
}

// Constructor functions for common error types

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(msg string) *Error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func Malformed(err error, msg string) *Error {
	return &Error{Kind: ErrMalformedTimestamp, Message: msg, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
