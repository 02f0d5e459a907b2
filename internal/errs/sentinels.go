// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (duplicate name, relation, email).
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict indicates optimistic concurrency failure.
	ErrVersionConflict = errors.New("version conflict")

	// ErrPrecondition indicates the caller's assumed state diverged from the stored state.
	ErrPrecondition = errors.New("precondition failed")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation")

	// ErrInvariant indicates internal data corruption or an unreachable branch.
	ErrInvariant = errors.New("invariant violation")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks the role for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary sign-in lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
