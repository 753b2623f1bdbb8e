package memberkit

import "time"

// Checker answers permission questions for one loaded membership. It is
// typically created by the Service and stored in context for use in handlers,
// so a request resolves its membership once and checks many times.
type Checker struct {
	membership *Membership
}

// NewChecker creates a Checker for a membership. A nil membership yields a
// checker that denies everything, which is what an absent member should see.
func NewChecker(membership *Membership) *Checker {
	return &Checker{membership: membership}
}

// UserID returns the user this checker is bound to, or empty for an absent
// member.
func (c *Checker) UserID() string {
	if c.membership == nil {
		return ""
	}
	return c.membership.UserID
}

// Role returns the member's role, or RESTRICTED-below (invalid) for an absent
// member.
func (c *Checker) Role() Role {
	if c.membership == nil {
		return ""
	}
	return c.membership.Role
}

// IsActiveMember reports whether the membership currently grants access.
func (c *Checker) IsActiveMember() bool {
	return c.membership != nil && c.membership.IsActive()
}

// Allowed resolves a single permission: role defaults overridden by the
// member's grants and denials. Banned, suspended, left and kicked members are
// always denied.
//
// Example:
//
//	if checker.Allowed(memberkit.PermissionMemberBan) {
//	    // member can ban others in this scope
//	}
func (c *Checker) Allowed(p Permission) bool {
	if c.membership == nil {
		return false
	}
	return c.membership.HasPermission(p)
}

// AllowedAll reports whether every listed permission resolves to true.
func (c *Checker) AllowedAll(perms ...Permission) bool {
	for _, p := range perms {
		if !c.Allowed(p) {
			return false
		}
	}
	return true
}

// AllowedAny reports whether at least one listed permission resolves to true.
func (c *Checker) AllowedAny(perms ...Permission) bool {
	for _, p := range perms {
		if c.Allowed(p) {
			return true
		}
	}
	return false
}

// AtLeast reports whether the member holds the required role or higher.
// Non-active memberships never satisfy a role requirement.
func (c *Checker) AtLeast(required Role) bool {
	if !c.IsActiveMember() {
		return false
	}
	return c.membership.Role.AtLeast(required)
}

// CanPromoteTo reports whether this member may promote someone to target.
func (c *Checker) CanPromoteTo(target Role) bool {
	if !c.IsActiveMember() {
		return false
	}
	return CanPromoteTo(c.membership.Role, target)
}

// CanDemoteTo reports whether this member may demote someone to target.
func (c *Checker) CanDemoteTo(target Role) bool {
	if !c.IsActiveMember() {
		return false
	}
	return CanDemoteTo(c.membership.Role, target)
}

// CanModerate reports whether this member outranks the target membership,
// which is required for kick/ban/mute/warn.
func (c *Checker) CanModerate(target *Membership) bool {
	if !c.IsActiveMember() || target == nil {
		return false
	}
	return CanModerate(c.membership.Role, target.Role)
}

// IsMuted reports whether the member is currently muted.
func (c *Checker) IsMuted() bool {
	if c.membership == nil {
		return false
	}
	return c.membership.IsMuted(time.Now())
}

// Membership returns the underlying membership, or nil for an absent member.
func (c *Checker) Membership() *Membership {
	return c.membership
}
