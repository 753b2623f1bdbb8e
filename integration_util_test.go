package memberkit

import (
	"context"
	"testing"
	"time"
)

// setupService skips the test when no database is reachable and returns a
// migrated service otherwise.
func setupService(t *testing.T) *Service {
	t.Helper()
	if !RequireDatabase(t) {
		return nil
	}
	service, err := SetupTestDatabase(context.Background())
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	return service
}

// actorCtx returns a context carrying the acting user plus request metadata
// the audit trail should capture.
func actorCtx(actorID string) context.Context {
	ctx := WithActorID(context.Background(), actorID)
	ctx = WithIPAddress(ctx, "203.0.113.9")
	ctx = WithUserAgent(ctx, "memberkit-test/1.0")
	return ctx
}

// createTestCommunity creates a community owned by a fresh user and returns
// both. The slug is unique per call so tests never collide.
func createTestCommunity(t *testing.T, service *Service, visibility Visibility, policy JoinPolicy) (*Community, string) {
	t.Helper()
	ownerID := uniqueID("owner")
	community, err := service.CreateCommunity(actorCtx(ownerID), CreateCommunityParams{
		Name:       "Test Community " + t.Name(),
		Slug:       uniqueSlug("community"),
		Visibility: visibility,
		JoinPolicy: policy,
	})
	if err != nil {
		t.Fatalf("Failed to create community: %v", err)
	}
	return community, ownerID
}

// addMemberWithRole joins a fresh user and optionally promotes them.
func addMemberWithRole(t *testing.T, service *Service, communityID, ownerID string, role Role) string {
	t.Helper()
	userID := uniqueID("user")
	if _, err := service.Join(actorCtx(userID), communityID, userID); err != nil {
		t.Fatalf("Failed to join community: %v", err)
	}
	if role != RoleMember {
		if _, err := service.UpdateRole(actorCtx(ownerID), communityID, userID, role); err != nil {
			t.Fatalf("Failed to set role %s: %v", role, err)
		}
	}
	return userID
}

// waitForCounter gives an absolute counter expectation a readable failure.
func assertMemberCount(t *testing.T, service *Service, communityID string, want int64) {
	t.Helper()
	community, err := service.GetCommunity(context.Background(), communityID)
	if err != nil {
		t.Fatalf("Failed to load community: %v", err)
	}
	if community.MemberCount != want {
		t.Errorf("member_count = %d, want %d", community.MemberCount, want)
	}
}

// futureTime returns a timestamp the given duration in the future, for
// invite expiries.
func futureTime(d time.Duration) time.Time {
	return time.Now().Add(d)
}
