package memberkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPermissionValid tests catalog membership
func TestPermissionValid(t *testing.T) {
	for _, p := range AllPermissions() {
		assert.True(t, p.Valid(), "%s should be valid", p)
	}

	assert.False(t, Permission("message.pin").Valid())
	assert.False(t, Permission("").Valid())
	assert.False(t, Permission("MESSAGE.SEND").Valid())
}

// TestAllPermissionsIsACopy tests that callers cannot mutate the catalog
func TestAllPermissionsIsACopy(t *testing.T) {
	perms := AllPermissions()
	perms[0] = Permission("tampered")

	assert.Equal(t, PermissionMessageSend, AllPermissions()[0])
}

// TestDefaultPermissionsFor tests the per-role defaults
func TestDefaultPermissionsFor(t *testing.T) {
	assert.Len(t, DefaultPermissionsFor(RoleOwner), len(AllPermissions()))

	// Admin holds everything except the irrevocable owner right
	admin := DefaultPermissionsFor(RoleAdmin)
	assert.Len(t, admin, len(AllPermissions())-1)
	assert.False(t, HasDefaultPermission(RoleAdmin, PermissionCommunityDelete))

	// Moderators moderate but do not touch community structure
	assert.True(t, HasDefaultPermission(RoleModerator, PermissionMemberBan))
	assert.True(t, HasDefaultPermission(RoleModerator, PermissionMemberManage))
	assert.False(t, HasDefaultPermission(RoleModerator, PermissionSpaceCreate))
	assert.False(t, HasDefaultPermission(RoleModerator, PermissionCommunityManageRoles))

	// Members participate without moderating
	assert.True(t, HasDefaultPermission(RoleMember, PermissionMessageSend))
	assert.True(t, HasDefaultPermission(RoleMember, PermissionMemberInvite))
	assert.False(t, HasDefaultPermission(RoleMember, PermissionMessageDelete))
	assert.False(t, HasDefaultPermission(RoleMember, PermissionMemberKick))

	assert.Empty(t, DefaultPermissionsFor(RoleRestricted))
	assert.Nil(t, DefaultPermissionsFor(Role("unknown")))
}

// TestDefaultPermissionsForIsACopy tests that callers cannot mutate defaults
func TestDefaultPermissionsForIsACopy(t *testing.T) {
	perms := DefaultPermissionsFor(RoleMember)
	perms[0] = Permission("tampered")

	assert.True(t, HasDefaultPermission(RoleMember, PermissionMessageSend))
}
