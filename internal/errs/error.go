package errs

import (
	"errors"
	"fmt"
)

// Error is a domain failure carrying a sentinel kind and a stable, machine-readable reason.
type Error struct {
	Kind    error
	Reason  string
	Message string
}

// New builds a reason-coded error of the given kind.
func New(kind error, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Reason
	}
	return e.Message
}

// Unwrap exposes the kind so errors.Is(err, errs.ErrNotFound) keeps working.
func (e *Error) Unwrap() error { return e.Kind }

// Is matches two reason-coded errors by reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Reason == e.Reason
	}
	return false
}

// Withf returns a copy of e with a formatted message; reason and kind are kept.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Reason: e.Reason, Message: fmt.Sprintf(format, args...)}
}

// Reason extracts the machine reason from err, or "" when err carries none.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Reason-coded failures shared by services and handlers.
var (
	ErrCourseNotFound   = New(ErrNotFound, "course_not_found", "course not found")
	ErrCardNotFound     = New(ErrNotFound, "card_not_found", "card not found")
	ErrRelationNotFound = New(ErrNotFound, "relation_not_found", "relation not found")
	ErrUserNotFound     = New(ErrNotFound, "user_not_found", "user not found")
	ErrBranchNotFound   = New(ErrNotFound, "branch_not_found", "branch not found")
	ErrPostNotFound     = New(ErrNotFound, "post_not_found", "post not found")
	ErrRecordNotFound   = New(ErrNotFound, "availability_not_found", "availability record not found")

	ErrSourceCardNotFound = New(ErrNotFound, "source_card_not_found", "source card not found")
	ErrTargetCardNotFound = New(ErrNotFound, "target_card_not_found", "target card not found")

	ErrRelationExists  = New(ErrAlreadyExists, "relation_exists", "relation already exists")
	ErrTargetHasParent = New(ErrAlreadyExists, "target_has_parent", "target card already has a parent")
	ErrCourseExists    = New(ErrAlreadyExists, "course_exists", "course with this name exists")
	ErrBranchExists    = New(ErrAlreadyExists, "branch_exists", "branch with this name exists")
	ErrPostExists      = New(ErrAlreadyExists, "post_exists", "post with this name exists")
	ErrUserExists      = New(ErrAlreadyExists, "user_exists", "user already exists")

	ErrCardHasChildren   = New(ErrPrecondition, "card_has_children", "the card has children")
	ErrNotInStatusGroup  = New(ErrPrecondition, "card_not_in_status_group", "card not found in this status group")
	ErrRelationSelf      = New(ErrPrecondition, "relation_self", "a card cannot be its own parent")
	ErrRelationCycle     = New(ErrPrecondition, "relation_cycle", "relation would create a cycle")
	ErrInvalidStatus     = New(ErrValidation, "invalid_card_status", "invalid card status")
	ErrInvalidNameFormat = New(ErrValidation, "invalid_name_format", "invalid name format")
	ErrInvalidRole       = New(ErrValidation, "invalid_role", "invalid role")
	ErrInvalidInput      = New(ErrValidation, "invalid_input", "invalid input")

	ErrNotInAnyStatusGroup = New(ErrInvariant, "card_not_in_any_status_group", "card not found in any status group")
	ErrUnknownCardStatus   = New(ErrInvariant, "unknown_card_status", "unknown card status")
	ErrTreeCycle           = New(ErrInvariant, "card_tree_cycle", "card tree contains a cycle")

	ErrInvalidCredentials = New(ErrUnauthorized, "invalid_credentials", "incorrect credentials")
	ErrInvalidToken       = New(ErrUnauthorized, "invalid_token", "invalid token")
	ErrInsufficientRole   = New(ErrForbidden, "insufficient_role", "insufficient permissions to perform this operation")
	ErrTooManyAttempts    = New(ErrRateLimited, "too_many_attempts", "too many sign-in attempts")
	ErrTooManyRequests    = New(ErrRateLimited, "too_many_requests", "rate limit exceeded")
)
