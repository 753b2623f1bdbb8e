package memberkit

// Permission is a fine-grained capability inside a community or space.
// The catalog is closed: permissions are compile-time constants, not
// runtime-defined strings.
type Permission string

const (
	PermissionMessageSend   Permission = "message.send"
	PermissionMessageEdit   Permission = "message.edit"
	PermissionMessageDelete Permission = "message.delete"

	PermissionSpaceCreate Permission = "space.create"
	PermissionSpaceEdit   Permission = "space.edit"
	PermissionSpaceDelete Permission = "space.delete"

	PermissionMemberInvite Permission = "member.invite"
	PermissionMemberKick   Permission = "member.kick"
	PermissionMemberBan    Permission = "member.ban"
	PermissionMemberManage Permission = "member.manage"

	PermissionCommunityEdit           Permission = "community.edit"
	PermissionCommunityDelete         Permission = "community.delete"
	PermissionCommunityManageRoles    Permission = "community.manage_roles"
	PermissionCommunityManageSettings Permission = "community.manage_settings"
	PermissionAuditLogView            Permission = "audit_log.view"

	PermissionFileUpload      Permission = "file.upload"
	PermissionMentionEveryone Permission = "mention.everyone"
	PermissionEventManage     Permission = "event.manage"
)

// allPermissions lists every permission in the catalog. Kept in declaration
// order so AllPermissions returns a stable slice.
var allPermissions = []Permission{
	PermissionMessageSend,
	PermissionMessageEdit,
	PermissionMessageDelete,
	PermissionSpaceCreate,
	PermissionSpaceEdit,
	PermissionSpaceDelete,
	PermissionMemberInvite,
	PermissionMemberKick,
	PermissionMemberBan,
	PermissionMemberManage,
	PermissionCommunityEdit,
	PermissionCommunityDelete,
	PermissionCommunityManageRoles,
	PermissionCommunityManageSettings,
	PermissionAuditLogView,
	PermissionFileUpload,
	PermissionMentionEveryone,
	PermissionEventManage,
}

// AllPermissions returns a copy of the full permission catalog.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Valid reports whether p is part of the catalog.
func (p Permission) Valid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// defaultPermissions maps each role to its default permission set. Sets are
// strictly decreasing down the hierarchy; OWNER holds the full catalog.
var defaultPermissions = map[Role][]Permission{
	RoleOwner: allPermissions,
	RoleAdmin: {
		PermissionMessageSend,
		PermissionMessageEdit,
		PermissionMessageDelete,
		PermissionSpaceCreate,
		PermissionSpaceEdit,
		PermissionSpaceDelete,
		PermissionMemberInvite,
		PermissionMemberKick,
		PermissionMemberBan,
		PermissionMemberManage,
		PermissionCommunityEdit,
		PermissionCommunityManageRoles,
		PermissionCommunityManageSettings,
		PermissionAuditLogView,
		PermissionFileUpload,
		PermissionMentionEveryone,
		PermissionEventManage,
	},
	RoleModerator: {
		PermissionMessageSend,
		PermissionMessageEdit,
		PermissionMessageDelete,
		PermissionMemberInvite,
		PermissionMemberKick,
		PermissionMemberBan,
		PermissionMemberManage,
		PermissionAuditLogView,
		PermissionFileUpload,
		PermissionMentionEveryone,
		PermissionEventManage,
	},
	RoleMember: {
		PermissionMessageSend,
		PermissionMessageEdit,
		PermissionMemberInvite,
		PermissionFileUpload,
	},
	RoleRestricted: {},
}

// DefaultPermissionsFor returns the default permission set for a role.
// Unknown roles get an empty set.
func DefaultPermissionsFor(role Role) []Permission {
	perms, ok := defaultPermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// HasDefaultPermission reports whether a role's default set contains p.
func HasDefaultPermission(role Role, p Permission) bool {
	for _, perm := range defaultPermissions[role] {
		if perm == p {
			return true
		}
	}
	return false
}

func containsPermission(set []Permission, p Permission) bool {
	for _, perm := range set {
		if perm == p {
			return true
		}
	}
	return false
}
