package memberkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestCommunityIsActive tests the operational gate on communities
func TestCommunityIsActive(t *testing.T) {
	c := &Community{Status: StatusActive}
	assert.True(t, c.IsActive())

	c.Status = StatusArchived
	assert.False(t, c.IsActive())

	c.Status = StatusActive
	c.DeletedAt = time.Now()
	assert.False(t, c.IsActive())
}

// TestCommunityRequiresApproval tests the join-request gate
func TestCommunityRequiresApproval(t *testing.T) {
	c := &Community{Visibility: VisibilityPublic, JoinPolicy: JoinPolicyOpen}
	assert.False(t, c.RequiresApproval())

	c.JoinPolicy = JoinPolicyApprovalRequired
	assert.True(t, c.RequiresApproval())

	// Secret communities require approval regardless of policy
	c.JoinPolicy = JoinPolicyOpen
	c.Visibility = VisibilitySecret
	assert.True(t, c.RequiresApproval())
}

// TestSpaceCanAcceptMembers tests the space join gate
func TestSpaceCanAcceptMembers(t *testing.T) {
	s := &Space{Status: StatusActive, MaxMembers: 0, MemberCount: 100}
	assert.NoError(t, s.CanAcceptMembers())

	s.MaxMembers = 100
	err := s.CanAcceptMembers()
	assert.Error(t, err)
	assert.True(t, IsInvalidState(err))

	s.MaxMembers = 101
	assert.NoError(t, s.CanAcceptMembers())

	s.Status = StatusArchived
	err = s.CanAcceptMembers()
	assert.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

// TestMembershipIsMuted tests mute expiry
func TestMembershipIsMuted(t *testing.T) {
	now := time.Now()
	m := &Membership{}
	assert.False(t, m.IsMuted(now))

	m.MutedUntil = now.Add(time.Hour)
	assert.True(t, m.IsMuted(now))

	m.MutedUntil = now.Add(-time.Hour)
	assert.False(t, m.IsMuted(now))
}

// TestMembershipHasPermission tests that only active members resolve
// permissions
func TestMembershipHasPermission(t *testing.T) {
	m := &Membership{Role: RoleModerator, Status: MembershipActive}
	assert.True(t, m.HasPermission(PermissionMemberKick))
	assert.False(t, m.HasPermission(PermissionCommunityDelete))

	for _, status := range []MembershipStatus{
		MembershipPending, MembershipBanned, MembershipSuspended, MembershipLeft, MembershipKicked,
	} {
		m.Status = status
		assert.False(t, m.HasPermission(PermissionMessageSend), "status %s should deny", status)
	}
}

// TestMembershipStatusCounted tests which statuses feed the member counter
func TestMembershipStatusCounted(t *testing.T) {
	assert.True(t, MembershipActive.counted())
	assert.True(t, MembershipPending.counted())
	assert.True(t, MembershipSuspended.counted())
	assert.False(t, MembershipBanned.counted())
	assert.False(t, MembershipLeft.counted())
	assert.False(t, MembershipKicked.counted())
}

// TestInviteRedeemable tests the redemption gate
func TestInviteRedeemable(t *testing.T) {
	now := time.Now()

	i := &Invite{Active: true}
	assert.NoError(t, i.Redeemable(now))

	// No expiry means never expires
	assert.False(t, i.IsExpired(now))

	i.ExpiresAt = now.Add(-time.Minute)
	err := i.Redeemable(now)
	assert.True(t, IsInvalidState(err))

	i.ExpiresAt = now.Add(time.Minute)
	assert.NoError(t, i.Redeemable(now))

	i.UsedAt = now
	assert.True(t, IsInvalidState(i.Redeemable(now)))

	used := &Invite{Active: false}
	assert.True(t, IsInvalidState(used.Redeemable(now)))
}

// TestJoinRequestCanBeProcessed tests terminal states
func TestJoinRequestCanBeProcessed(t *testing.T) {
	r := &JoinRequest{Status: JoinRequestPending}
	assert.True(t, r.CanBeProcessed())

	for _, status := range []JoinRequestStatus{
		JoinRequestApproved, JoinRequestRejected, JoinRequestCancelled,
	} {
		r.Status = status
		assert.False(t, r.CanBeProcessed(), "status %s is terminal", status)
	}
}

// TestEnumValid tests the enum validators
func TestEnumValid(t *testing.T) {
	assert.True(t, VisibilityPublic.Valid())
	assert.True(t, VisibilitySecret.Valid())
	assert.False(t, Visibility("hidden").Valid())

	assert.True(t, JoinPolicyOpen.Valid())
	assert.True(t, JoinPolicyInviteOnly.Valid())
	assert.False(t, JoinPolicy("closed").Valid())

	assert.True(t, SpaceModeChat.Valid())
	assert.False(t, SpaceMode("wiki").Valid())
}

// TestDefaultCommunitySettings tests settings defaults
func TestDefaultCommunitySettings(t *testing.T) {
	s := DefaultCommunitySettings()
	assert.True(t, s.AllowMemberInvites)
	assert.False(t, s.RequirePostApproval)
	assert.Equal(t, 0, s.SlowModeSeconds)
	assert.Equal(t, 3, s.MaxWarnings)
}
