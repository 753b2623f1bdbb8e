package memberkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestContextUserID tests user ID round trip
func TestContextUserID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetUserID(ctx))

	ctx = WithUserID(ctx, "u1")
	assert.Equal(t, "u1", GetUserID(ctx))
}

// TestContextActorFallback tests that actor ID falls back to user ID
func TestContextActorFallback(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetActorID(ctx))

	ctx = WithUserID(ctx, "u1")
	assert.Equal(t, "u1", GetActorID(ctx))

	ctx = WithActorID(ctx, "admin")
	assert.Equal(t, "admin", GetActorID(ctx))
	assert.Equal(t, "u1", GetUserID(ctx))
}

// TestContextRequestMetadata tests IP, user agent and request ID round trips
func TestContextRequestMetadata(t *testing.T) {
	ctx := context.Background()

	ctx = WithIPAddress(ctx, "203.0.113.9")
	ctx = WithUserAgent(ctx, "test-agent/1.0")
	ctx = WithRequestID(ctx, "req-42")

	assert.Equal(t, "203.0.113.9", GetIPAddress(ctx))
	assert.Equal(t, "test-agent/1.0", GetUserAgent(ctx))
	assert.Equal(t, "req-42", GetRequestID(ctx))
}

// TestContextChecker tests checker storage in context
func TestContextChecker(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetChecker(ctx))
	assert.Nil(t, FromContext(ctx))

	checker := NewChecker(&Membership{UserID: "u1", Role: RoleMember, Status: MembershipActive})
	ctx = WithChecker(ctx, checker)

	assert.Equal(t, checker, GetChecker(ctx))
	assert.Equal(t, checker, FromContext(ctx))
}

// TestAuditContextRoundTrip tests bulk audit metadata handling
func TestAuditContextRoundTrip(t *testing.T) {
	ac := AuditContext{
		ActorID:   "admin",
		IPAddress: "203.0.113.9",
		UserAgent: "test-agent/1.0",
		RequestID: "req-42",
	}

	ctx := WithAuditContext(context.Background(), ac)
	assert.Equal(t, ac, GetAuditContext(ctx))

	// Empty fields do not clobber existing values
	ctx = WithAuditContext(ctx, AuditContext{RequestID: "req-43"})
	got := GetAuditContext(ctx)
	assert.Equal(t, "admin", got.ActorID)
	assert.Equal(t, "req-43", got.RequestID)
}
