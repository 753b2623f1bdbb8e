package memberkit

import "fmt"

// Role is a member's position in the fixed hierarchy. The hierarchy is a total
// order: OWNER > ADMIN > MODERATOR > MEMBER > RESTRICTED. Role semantics never
// vary per community; what varies per member are the grant/denial overrides.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleMember     Role = "member"
	RoleRestricted Role = "restricted"
)

// roleRanks defines the total order. Higher rank outranks lower.
var roleRanks = map[Role]int{
	RoleOwner:      4,
	RoleAdmin:      3,
	RoleModerator:  2,
	RoleMember:     1,
	RoleRestricted: 0,
}

// Rank returns the role's position in the total order. Unknown roles rank
// below RESTRICTED.
func (r Role) Rank() int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return -1
}

// Valid reports whether r is one of the five defined roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Outranks reports whether r is strictly higher than other.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// AtLeast reports whether r is equal to or higher than other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

// ParseRole converts a raw string into a Role, returning a Validation error
// for anything outside the hierarchy.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", NewError(ErrValidation, fmt.Sprintf("unknown role %q", s)).WithRole(role)
	}
	return role, nil
}

// Resolve computes the effective answer for a single permission check.
//
// Precedence is fixed and order matters:
//
//  1. An explicit denial wins over everything else, including role defaults.
//     The only exception is the OWNER's community-delete right, which is
//     irrevocable and therefore checked before the denial list.
//  2. An explicit grant wins over the role default.
//  3. Otherwise the role's default permission set decides.
func Resolve(role Role, grants, denials []Permission, p Permission) bool {
	if role == RoleOwner && p == PermissionCommunityDelete {
		return true
	}
	if containsPermission(denials, p) {
		return false
	}
	if containsPermission(grants, p) {
		return true
	}
	return HasDefaultPermission(role, p)
}

// CanPromoteTo reports whether an actor with the given role may promote
// another member to target. Promotion requires the target rank to stay
// strictly below the actor's own. Nobody promotes to OWNER this way;
// ownership moves only through TransferOwnership.
func CanPromoteTo(actor, target Role) bool {
	if !actor.Valid() || !target.Valid() {
		return false
	}
	if target == RoleOwner {
		return false
	}
	return actor.Outranks(target)
}

// CanDemoteTo reports whether an actor may demote another member to target.
// Same rule as promotion: the resulting role must rank strictly below the
// actor's own, and OWNER is never a demotion target.
func CanDemoteTo(actor, target Role) bool {
	return CanPromoteTo(actor, target)
}

// CanModerate reports whether an actor role may apply moderation (kick, ban,
// mute, warn) to a member holding target. Requires strictly higher rank.
func CanModerate(actor, target Role) bool {
	if !actor.Valid() || !target.Valid() {
		return false
	}
	return actor.Outranks(target)
}
