package memberkit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrorMessage tests error string formatting
func TestErrorMessage(t *testing.T) {
	err := NewError(ErrForbidden, "missing permission: member.ban")
	assert.Equal(t, "memberkit: forbidden: missing permission: member.ban", err.Error())

	bare := NewError(ErrNotFound, "")
	assert.Equal(t, "memberkit: not found", bare.Error())
}

// TestErrorUnwrap tests errors.Is through the wrapper
func TestErrorUnwrap(t *testing.T) {
	err := NewError(ErrConflict, "user is already a member").
		WithScope(ScopeCommunity, "c1").
		WithUser("u1")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrForbidden))

	// Survives further wrapping
	wrapped := fmt.Errorf("join failed: %w", err)
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.True(t, IsConflict(wrapped))
}

// TestErrorChaining tests the fluent context builders
func TestErrorChaining(t *testing.T) {
	err := NewError(ErrForbidden, "cannot remove a member of equal or higher role").
		WithScope(ScopeSpace, "s1").
		WithRole(RoleAdmin).
		WithUser("target").
		WithActor("actor")

	assert.Equal(t, ScopeSpace, err.ScopeType)
	assert.Equal(t, "s1", err.ScopeID)
	assert.Equal(t, RoleAdmin, err.Role)
	assert.Equal(t, "target", err.UserID)
	assert.Equal(t, "actor", err.ActorID)
}

// TestErrorHelpers tests the taxonomy predicates
func TestErrorHelpers(t *testing.T) {
	testCases := []struct {
		err   error
		check func(error) bool
	}{
		{NewError(ErrNotFound, "x"), IsNotFound},
		{NewError(ErrConflict, "x"), IsConflict},
		{NewError(ErrForbidden, "x"), IsForbidden},
		{NewError(ErrInvalidState, "x"), IsInvalidState},
		{NewError(ErrValidation, "x"), IsValidation},
	}

	checks := []func(error) bool{IsNotFound, IsConflict, IsForbidden, IsInvalidState, IsValidation}

	for i, tc := range testCases {
		for j, check := range checks {
			if i == j {
				assert.True(t, check(tc.err))
			} else {
				assert.False(t, check(tc.err))
			}
		}
	}

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsForbidden(errors.New("plain")))
}
