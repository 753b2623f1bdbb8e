package memberkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for MemberKit operations.
var (
	// ErrNotFound is returned when a community, space, membership, invite or
	// join request does not exist.
	ErrNotFound = errors.New("memberkit: not found")

	// ErrConflict is returned for duplicate memberships, duplicate pending
	// join requests and similar uniqueness violations.
	ErrConflict = errors.New("memberkit: conflict")

	// ErrForbidden is returned when the actor lacks the required role or
	// permission, or the action targets a protected role such as OWNER.
	ErrForbidden = errors.New("memberkit: forbidden")

	// ErrInvalidState is returned when operating on an entity whose state
	// does not allow the transition (expired invite, processed join request,
	// banning an already-banned member).
	ErrInvalidState = errors.New("memberkit: invalid state")

	// ErrValidation is returned for malformed input such as an unknown role
	// or an empty slug.
	ErrValidation = errors.New("memberkit: validation failed")

	// ErrNoActorID is returned when the acting user is not found in context
	// for an operation that must be audited.
	ErrNoActorID = errors.New("memberkit: no actor ID in context")

	// ErrDatabaseError is returned when a database operation fails for
	// reasons outside the business-rule taxonomy.
	ErrDatabaseError = errors.New("memberkit: database error")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err       error     // Underlying sentinel error
	Message   string    // Additional context
	ScopeType ScopeType // Scope kind involved (community or space)
	ScopeID   string    // Scope ID involved
	Role      Role      // Role involved (if applicable)
	UserID    string    // User involved (if applicable)
	ActorID   string    // Actor who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithScope adds scope information to the error.
func (e *Error) WithScope(scopeType ScopeType, scopeID string) *Error {
	e.ScopeType = scopeType
	e.ScopeID = scopeID
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(role Role) *Error {
	e.Role = role
	return e
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// IsNotFound checks if an error means the entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsForbidden checks if an error is an authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsInvalidState checks if an error is a disallowed state transition.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsValidation checks if an error is a malformed-input failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
