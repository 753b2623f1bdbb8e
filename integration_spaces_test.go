package memberkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSpace creates a public space owned by the given community member.
func createTestSpace(t *testing.T, service *Service, communityID, creatorID string, params CreateSpaceParams) *Space {
	t.Helper()
	if params.Name == "" {
		params.Name = uniqueID("space")
	}
	space, err := service.CreateSpace(actorCtx(creatorID), communityID, params)
	if err != nil {
		t.Fatalf("Failed to create space: %v", err)
	}
	return space
}

// TestCreateSpace tests space creation with founder membership and counters
func TestCreateSpace(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	space := createTestSpace(t, service, community.ID, ownerID, CreateSpaceParams{Mode: SpaceModeChat})

	membership, err := service.GetMembership(context.Background(), ScopeSpace, space.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, membership.Role)
	assert.Equal(t, JoinMethodFounder, membership.JoinMethod)

	reloaded, err := service.GetCommunity(context.Background(), community.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.SpaceCount)

	// Space names are unique per community
	_, err = service.CreateSpace(actorCtx(ownerID), community.ID, CreateSpaceParams{Name: space.Name})
	assert.True(t, IsConflict(err), "duplicate space name should conflict, got %v", err)

	// Members lack space.create by default
	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	_, err = service.CreateSpace(actorCtx(memberID), community.ID, CreateSpaceParams{Name: uniqueID("space")})
	assert.True(t, IsForbidden(err))
}

// TestJoinSpaceRequiresCommunityMembership tests the nesting invariant
func TestJoinSpaceRequiresCommunityMembership(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	space := createTestSpace(t, service, community.ID, ownerID, CreateSpaceParams{})

	// A stranger cannot join the space
	outsiderID := uniqueID("outsider")
	_, err := service.JoinSpace(actorCtx(outsiderID), space.ID, outsiderID)
	assert.True(t, IsInvalidState(err), "expected InvalidState, got %v", err)

	// After joining the community, the space join works
	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	membership, err := service.JoinSpace(actorCtx(memberID), space.ID, memberID)
	require.NoError(t, err)
	assert.Equal(t, RoleMember, membership.Role)
	assert.Equal(t, ScopeSpace, membership.ScopeType)

	// A suspended community member cannot join spaces
	suspendedID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	require.NoError(t, service.Suspend(actorCtx(ownerID), community.ID, suspendedID, "cooldown"))
	_, err = service.JoinSpace(actorCtx(suspendedID), space.ID, suspendedID)
	assert.True(t, IsInvalidState(err))
}

// TestSpaceMemberCap tests the max_members gate
func TestSpaceMemberCap(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	space := createTestSpace(t, service, community.ID, ownerID, CreateSpaceParams{MaxMembers: 2})

	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	_, err := service.JoinSpace(actorCtx(memberID), space.ID, memberID)
	require.NoError(t, err)

	// Space is now full (founder + one member)
	lateID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	_, err = service.JoinSpace(actorCtx(lateID), space.ID, lateID)
	assert.True(t, IsInvalidState(err), "full space should reject joins, got %v", err)
}

// TestPrivateSpaceAccess tests that non-public spaces require moderator
// placement
func TestPrivateSpaceAccess(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	space := createTestSpace(t, service, community.ID, ownerID, CreateSpaceParams{Visibility: VisibilityPrivate})

	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	_, err := service.JoinSpace(actorCtx(memberID), space.ID, memberID)
	assert.True(t, IsForbidden(err), "private space should reject self-join, got %v", err)

	// The community owner can place the member into the space
	membership, err := service.AddSpaceMember(actorCtx(ownerID), space.ID, memberID)
	require.NoError(t, err)
	assert.Equal(t, JoinMethodInvite, membership.JoinMethod)
	assert.Equal(t, ownerID, membership.InvitedBy)
}

// TestSpaceRolesAreIndependent tests that community rank does not leak into
// space moderation
func TestSpaceRolesAreIndependent(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)

	// A plain community member founds a space and owns it there
	creatorID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	require.NoError(t, service.GrantPermission(actorCtx(ownerID), ScopeCommunity, community.ID, creatorID, PermissionSpaceCreate))
	space := createTestSpace(t, service, community.ID, creatorID, CreateSpaceParams{})

	spaceOwner, err := service.GetMembership(context.Background(), ScopeSpace, space.ID, creatorID)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, spaceOwner.Role)

	communityRow, err := service.GetMembership(context.Background(), ScopeCommunity, community.ID, creatorID)
	require.NoError(t, err)
	assert.Equal(t, RoleMember, communityRow.Role)

	// Inside the space the creator can promote a joiner
	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	_, err = service.JoinSpace(actorCtx(memberID), space.ID, memberID)
	require.NoError(t, err)

	promoted, err := service.UpdateSpaceRole(actorCtx(creatorID), space.ID, memberID, RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, promoted.Role)
}

// TestSpaceKickAndBan tests space-scoped moderation
func TestSpaceKickAndBan(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	space := createTestSpace(t, service, community.ID, ownerID, CreateSpaceParams{})

	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	_, err := service.JoinSpace(actorCtx(memberID), space.ID, memberID)
	require.NoError(t, err)

	require.NoError(t, service.BanSpaceMember(actorCtx(ownerID), space.ID, memberID, "off topic"))

	// Space ban blocks space re-join but leaves the community membership alone
	_, err = service.JoinSpace(actorCtx(memberID), space.ID, memberID)
	assert.True(t, IsForbidden(err))

	communityRow, err := service.GetMembership(context.Background(), ScopeCommunity, community.ID, memberID)
	require.NoError(t, err)
	assert.Equal(t, MembershipActive, communityRow.Status)

	require.NoError(t, service.UnbanSpaceMember(actorCtx(ownerID), space.ID, memberID))
	restored, err := service.GetMembership(context.Background(), ScopeSpace, space.ID, memberID)
	require.NoError(t, err)
	assert.Equal(t, MembershipActive, restored.Status)

	// Kick path
	require.NoError(t, service.RemoveSpaceMember(actorCtx(ownerID), space.ID, memberID, "done"))
	kicked, err := service.GetMembership(context.Background(), ScopeSpace, space.ID, memberID)
	require.NoError(t, err)
	assert.Equal(t, MembershipKicked, kicked.Status)
}

// TestTransferSpaceOwnership tests the space owner swap
func TestTransferSpaceOwnership(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	space := createTestSpace(t, service, community.ID, ownerID, CreateSpaceParams{})

	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	_, err := service.JoinSpace(actorCtx(memberID), space.ID, memberID)
	require.NoError(t, err)

	// The space owner cannot leave before transferring
	err = service.LeaveSpace(actorCtx(ownerID), space.ID, ownerID)
	assert.True(t, IsForbidden(err))

	require.NoError(t, service.TransferSpaceOwnership(actorCtx(ownerID), space.ID, memberID))

	newOwner, err := service.GetMembership(context.Background(), ScopeSpace, space.ID, memberID)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, newOwner.Role)

	previous, err := service.GetMembership(context.Background(), ScopeSpace, space.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, previous.Role)

	require.NoError(t, service.LeaveSpace(actorCtx(ownerID), space.ID, ownerID))
}

// TestDeleteSpaceCounters tests that deleting a space decrements space_count
func TestDeleteSpaceCounters(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	space := createTestSpace(t, service, community.ID, ownerID, CreateSpaceParams{})

	require.NoError(t, service.DeleteSpace(actorCtx(ownerID), space.ID))

	reloaded, err := service.GetCommunity(context.Background(), community.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reloaded.SpaceCount)

	_, err = service.GetSpace(context.Background(), space.ID)
	assert.True(t, IsNotFound(err))
}
