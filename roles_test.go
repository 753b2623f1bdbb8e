package memberkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRoleRank tests the role total order
func TestRoleRank(t *testing.T) {
	assert.Equal(t, 4, RoleOwner.Rank())
	assert.Equal(t, 3, RoleAdmin.Rank())
	assert.Equal(t, 2, RoleModerator.Rank())
	assert.Equal(t, 1, RoleMember.Rank())
	assert.Equal(t, 0, RoleRestricted.Rank())
	assert.Equal(t, -1, Role("superuser").Rank())
	assert.Equal(t, -1, Role("").Rank())
}

// TestRoleOutranks tests strict ordering between roles
func TestRoleOutranks(t *testing.T) {
	ordered := []Role{RoleOwner, RoleAdmin, RoleModerator, RoleMember, RoleRestricted}

	for i, higher := range ordered {
		for j, lower := range ordered {
			if i < j {
				assert.True(t, higher.Outranks(lower), "%s should outrank %s", higher, lower)
				assert.False(t, lower.Outranks(higher), "%s should not outrank %s", lower, higher)
			}
		}
		// A role never outranks itself
		assert.False(t, higher.Outranks(higher))
	}
}

// TestRoleAtLeast tests inclusive role comparison
func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleOwner))
	assert.True(t, RoleOwner.AtLeast(RoleRestricted))
	assert.True(t, RoleModerator.AtLeast(RoleMember))
	assert.False(t, RoleMember.AtLeast(RoleModerator))
	assert.False(t, Role("invalid").AtLeast(RoleRestricted))
}

// TestParseRole tests string-to-role conversion
func TestParseRole(t *testing.T) {
	testCases := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"owner", RoleOwner, false},
		{"admin", RoleAdmin, false},
		{"moderator", RoleModerator, false},
		{"member", RoleMember, false},
		{"restricted", RoleRestricted, false},
		{"OWNER", "", true},
		{"superadmin", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		role, err := ParseRole(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			assert.True(t, IsValidation(err))
		} else {
			assert.NoError(t, err, "input %q", tc.input)
			assert.Equal(t, tc.want, role)
		}
	}
}

// TestResolvePrecedence tests the fixed precedence of permission resolution
func TestResolvePrecedence(t *testing.T) {
	// Role default decides with no overrides
	assert.True(t, Resolve(RoleModerator, nil, nil, PermissionMemberKick))
	assert.False(t, Resolve(RoleMember, nil, nil, PermissionMemberKick))

	// Grant overrides role default
	assert.True(t, Resolve(RoleMember, []Permission{PermissionMemberKick}, nil, PermissionMemberKick))

	// Denial overrides role default
	assert.False(t, Resolve(RoleModerator, nil, []Permission{PermissionMemberKick}, PermissionMemberKick))

	// Denial overrides grant when both are present
	assert.False(t, Resolve(RoleMember,
		[]Permission{PermissionMemberKick},
		[]Permission{PermissionMemberKick},
		PermissionMemberKick))

	// Restricted gets nothing by default
	for _, p := range AllPermissions() {
		assert.False(t, Resolve(RoleRestricted, nil, nil, p), "restricted should not hold %s", p)
	}
}

// TestResolveOwnerDeleteIrrevocable tests that community.delete for the owner
// cannot be revoked by a denial
func TestResolveOwnerDeleteIrrevocable(t *testing.T) {
	denials := []Permission{PermissionCommunityDelete}

	assert.True(t, Resolve(RoleOwner, nil, denials, PermissionCommunityDelete))

	// The exception is scoped to the owner; admins lack community.delete and a
	// denial keeps it that way
	assert.False(t, Resolve(RoleAdmin, nil, denials, PermissionCommunityDelete))
	assert.False(t, Resolve(RoleAdmin, nil, nil, PermissionCommunityDelete))

	// Other owner permissions stay deniable
	assert.False(t, Resolve(RoleOwner, nil, []Permission{PermissionMessageSend}, PermissionMessageSend))
}

// TestDefaultPermissionSetsNested tests that each role's default set contains
// the set of the role below it
func TestDefaultPermissionSetsNested(t *testing.T) {
	ordered := []Role{RoleOwner, RoleAdmin, RoleModerator, RoleMember, RoleRestricted}

	for i := 0; i < len(ordered)-1; i++ {
		higher, lower := ordered[i], ordered[i+1]
		for _, p := range DefaultPermissionsFor(lower) {
			assert.True(t, HasDefaultPermission(higher, p),
				"%s should inherit %s from %s", higher, p, lower)
		}
	}

	assert.Empty(t, DefaultPermissionsFor(RoleRestricted))
	assert.Len(t, DefaultPermissionsFor(RoleOwner), len(AllPermissions()))
}

// TestCanPromoteTo tests promotion rank rules
func TestCanPromoteTo(t *testing.T) {
	assert.True(t, CanPromoteTo(RoleOwner, RoleAdmin))
	assert.True(t, CanPromoteTo(RoleAdmin, RoleModerator))
	assert.True(t, CanPromoteTo(RoleModerator, RoleMember))

	// Never to your own rank or above
	assert.False(t, CanPromoteTo(RoleAdmin, RoleAdmin))
	assert.False(t, CanPromoteTo(RoleModerator, RoleAdmin))

	// Never to owner, not even by the owner
	assert.False(t, CanPromoteTo(RoleOwner, RoleOwner))

	// Invalid roles fail closed
	assert.False(t, CanPromoteTo(Role("x"), RoleMember))
	assert.False(t, CanPromoteTo(RoleOwner, Role("x")))
}

// TestCanModerate tests that moderation needs a strictly higher role
func TestCanModerate(t *testing.T) {
	assert.True(t, CanModerate(RoleOwner, RoleAdmin))
	assert.True(t, CanModerate(RoleModerator, RoleMember))
	assert.False(t, CanModerate(RoleModerator, RoleModerator))
	assert.False(t, CanModerate(RoleMember, RoleModerator))
	assert.False(t, CanModerate(RoleAdmin, RoleOwner))
	assert.False(t, CanModerate(Role(""), RoleMember))
}

// BenchmarkResolve measures permission resolution with overrides present
func BenchmarkResolve(b *testing.B) {
	grants := []Permission{PermissionSpaceCreate, PermissionEventManage}
	denials := []Permission{PermissionMentionEveryone}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Resolve(RoleMember, grants, denials, PermissionSpaceCreate)
	}
}
