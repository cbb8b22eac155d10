package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// (one ballot per voter and election, one live application per applicant and
// election, unique usernames).
var ErrDuplicate = errors.New("duplicate record")

// ErrLimitReached is returned when a candidate insert would exceed the
// election's candidate ceiling.
var ErrLimitReached = errors.New("candidate limit reached")

// ErrStateChanged is returned when a conditional update matched no row because
// the record is no longer in the required state (already cancelled, already
// resolved).
var ErrStateChanged = errors.New("record is not in the expected state")

// ErrInvalidReference is returned when a foreign key check fails, e.g. a
// ballot naming a candidate of a different election.
var ErrInvalidReference = errors.New("invalid reference")

// ErrUnknownVoter is returned when a ballot names a voter with no account.
var ErrUnknownVoter = errors.New("unknown voter")
