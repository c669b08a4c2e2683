package domain

import "errors"

var (
	// ErrNotFound reports that an account or referenced entity does not
	// exist. It is also returned for accounts owned by another user, so a
	// caller cannot probe for the existence of accounts it does not own.
	ErrNotFound = errors.New("not found")

	// ErrForbidden reports that the entity exists but is not owned by the
	// caller. Used only on paths where existence is already known to the
	// caller; everywhere else prefer ErrNotFound.
	ErrForbidden = errors.New("forbidden")
)
