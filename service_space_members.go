package memberkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// SPACE MEMBERSHIP LIFECYCLE
// ============================================================================
//
// Space membership mirrors community membership with one extra precondition:
// the user must hold an active membership in the parent community. Space role
// hierarchy and moderation rules are evaluated against space-scoped rows only;
// a community MEMBER can be a space OWNER.

// JoinSpace admits a user into a public space. Private and secret spaces only
// accept members through AddSpaceMember.
func (s *Service) JoinSpace(ctx context.Context, spaceID, userID string) (*Membership, error) {
	if err := s.requireUserExists(ctx, userID); err != nil {
		return nil, err
	}

	var membership *Membership
	var communityID string
	err := s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		communityID = space.CommunityID
		if err := s.requireParentMembership(ctx, db, space, userID); err != nil {
			return err
		}
		if err := space.CanAcceptMembers(); err != nil {
			return err
		}
		if space.Visibility != VisibilityPublic {
			return NewError(ErrForbidden, "space members are added by moderators").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}

		membership, err = s.createMembership(ctx, db, userID, joinSpec{
			scopeType:   ScopeSpace,
			scopeID:     spaceID,
			communityID: space.CommunityID,
			role:        RoleMember,
			method:      JoinMethodDirect,
			action:      ActionSpaceMemberJoined,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "space.member.joined", communityID, map[string]any{
		"space_id": spaceID,
		"user_id":  userID,
	})
	return membership, nil
}

// AddSpaceMember admits a user into a space on a moderator's initiative. This
// is the only way into private and secret spaces. The actor needs
// member.manage in the space or the parent community.
func (s *Service) AddSpaceMember(ctx context.Context, spaceID, userID string) (*Membership, error) {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireUserExists(ctx, userID); err != nil {
		return nil, err
	}

	var membership *Membership
	var communityID string
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		communityID = space.CommunityID
		if err := s.requireSpacePermission(ctx, db, space, actorID, PermissionMemberManage); err != nil {
			return err
		}
		if err := s.requireParentMembership(ctx, db, space, userID); err != nil {
			return err
		}
		if err := space.CanAcceptMembers(); err != nil {
			return err
		}

		membership, err = s.createMembership(ctx, db, userID, joinSpec{
			scopeType:   ScopeSpace,
			scopeID:     spaceID,
			communityID: space.CommunityID,
			role:        RoleMember,
			invitedBy:   actorID,
			method:      JoinMethodInvite,
			action:      ActionSpaceMemberJoined,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "space.member.joined", communityID, map[string]any{
		"space_id": spaceID,
		"user_id":  userID,
		"added_by": actorID,
	})
	return membership, nil
}

// LeaveSpace removes the user from a space at their own request. The space
// owner must transfer ownership or delete the space first.
func (s *Service) LeaveSpace(ctx context.Context, spaceID, userID string) error {
	var communityID string
	err := s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		communityID = space.CommunityID

		membership, err := s.findMembership(ctx, db, ScopeSpace, spaceID, userID)
		if err != nil {
			return err
		}
		if membership == nil || membership.Status == MembershipLeft || membership.Status == MembershipKicked {
			return NewError(ErrNotFound, "not a member of this space").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}
		if membership.Role == RoleOwner {
			return NewError(ErrForbidden, "owner must transfer ownership or delete the space before leaving").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}

		if err := s.setMembershipStatus(ctx, db, membership, MembershipLeft, true); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceMemberLeft,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user left space",
			Data:        map[string]any{"space_id": spaceID},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "space.member.left", communityID, map[string]any{
		"space_id": spaceID,
		"user_id":  userID,
	})
	return nil
}

// RemoveSpaceMember kicks a member out of a space. The actor needs member.kick
// in the space and a strictly higher space role than the target; the space
// owner cannot be removed.
func (s *Service) RemoveSpaceMember(ctx context.Context, spaceID, userID, reason string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if actorID == userID {
		return s.LeaveSpace(ctx, spaceID, userID)
	}

	var communityID string
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		communityID = space.CommunityID

		_, target, err := s.spaceModerationTarget(ctx, db, space, actorID, userID, PermissionMemberKick)
		if err != nil {
			return err
		}
		if target.Role == RoleOwner {
			return NewError(ErrForbidden, "space owner cannot be removed").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}

		if err := s.setMembershipStatus(ctx, db, target, MembershipKicked, true); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceMemberKicked,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user removed from space",
			Data: map[string]any{
				"space_id": spaceID,
				"reason":   reason,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "space.member.kicked", communityID, map[string]any{
		"space_id": spaceID,
		"user_id":  userID,
		"reason":   reason,
	})
	return nil
}

// UpdateSpaceRole changes a member's role inside a space. Ownership changes go
// through TransferSpaceOwnership.
func (s *Service) UpdateSpaceRole(ctx context.Context, spaceID, userID string, newRole Role) (*Membership, error) {
	if !newRole.Valid() {
		return nil, NewError(ErrValidation, "invalid role").WithRole(newRole)
	}
	if newRole == RoleOwner {
		return nil, NewError(ErrForbidden, "ownership is assigned through ownership transfer").
			WithScope(ScopeSpace, spaceID).
			WithUser(userID)
	}
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	var membership *Membership
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}

		actor, err := s.requireActiveMember(ctx, db, ScopeSpace, spaceID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionCommunityManageRoles) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionCommunityManageRoles)).
				WithScope(ScopeSpace, spaceID).
				WithActor(actorID)
		}

		membership, err = s.findMembership(ctx, db, ScopeSpace, spaceID, userID)
		if err != nil {
			return err
		}
		if membership == nil || !membership.IsActive() {
			return NewError(ErrNotFound, "no active membership for user").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}
		if membership.Role == RoleOwner {
			return NewError(ErrForbidden, "owner role cannot be changed here").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}
		if membership.Role == newRole {
			return NewError(ErrInvalidState, "member already has this role").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID).
				WithRole(newRole)
		}
		if !CanModerate(actor.Role, membership.Role) || !CanPromoteTo(actor.Role, newRole) {
			return NewError(ErrForbidden, "cannot assign a role at or above your own").
				WithScope(ScopeSpace, spaceID).
				WithActor(actorID).
				WithRole(newRole)
		}

		before := membership.Role
		res, err := db.NewUpdate().Table("memberships").
			Set("role = ?", newRole).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", membership.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "UpdateSpaceRole").Err(); err != nil {
			return err
		}
		membership.Role = newRole

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceMemberRoleChanged,
			TargetID:    userID,
			TargetType:  "user",
			Description: "space member role changed",
			Changes: map[string]any{
				"space_id": spaceID,
				"before":   before,
				"after":    newRole,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// BanSpaceMember blocks a user from a space. Space owners and admins cannot
// be banned.
func (s *Service) BanSpaceMember(ctx context.Context, spaceID, userID, reason string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	var communityID string
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		communityID = space.CommunityID

		_, target, err := s.spaceModerationTarget(ctx, db, space, actorID, userID, PermissionMemberBan)
		if err != nil {
			return err
		}
		if target.Status == MembershipBanned {
			return NewError(ErrInvalidState, "user is already banned").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}
		if target.Role == RoleOwner || target.Role == RoleAdmin {
			return NewError(ErrForbidden, "owners and admins cannot be banned").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID).
				WithRole(target.Role)
		}

		if err := s.setMembershipStatus(ctx, db, target, MembershipBanned, false); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceMemberBanned,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user banned from space",
			Data: map[string]any{
				"space_id": spaceID,
				"reason":   reason,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "space.member.banned", communityID, map[string]any{
		"space_id": spaceID,
		"user_id":  userID,
		"reason":   reason,
	})
	return nil
}

// UnbanSpaceMember lifts a space ban, restoring the user to an active MEMBER.
func (s *Service) UnbanSpaceMember(ctx context.Context, spaceID, userID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		if err := s.requireSpacePermission(ctx, db, space, actorID, PermissionMemberBan); err != nil {
			return err
		}

		membership, err := s.findMembership(ctx, db, ScopeSpace, spaceID, userID)
		if err != nil {
			return err
		}
		if membership == nil || membership.Status != MembershipBanned {
			return NewError(ErrInvalidState, "user is not banned").
				WithScope(ScopeSpace, spaceID).
				WithUser(userID)
		}

		res, err := db.NewUpdate().Table("memberships").
			Set("status = ?", MembershipActive).
			Set("role = ?", RoleMember).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", membership.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "UnbanSpaceMember").Err(); err != nil {
			return err
		}
		if err := s.bumpMemberCount(ctx, db, ScopeSpace, spaceID, 1); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceMemberUnbanned,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user unbanned from space",
			Data:        map[string]any{"space_id": spaceID},
		})
		return nil
	})
}

// TransferSpaceOwnership atomically hands a space to another active space
// member. The previous owner becomes a space ADMIN.
func (s *Service) TransferSpaceOwnership(ctx context.Context, spaceID, newOwnerID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if actorID == newOwnerID {
		return NewError(ErrInvalidState, "cannot transfer ownership to yourself").
			WithScope(ScopeSpace, spaceID).
			WithActor(actorID)
	}

	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}

		actor, err := s.requireActiveMember(ctx, db, ScopeSpace, spaceID, actorID)
		if err != nil {
			return err
		}
		if actor.Role != RoleOwner {
			return NewError(ErrForbidden, "only the space owner can transfer ownership").
				WithScope(ScopeSpace, spaceID).
				WithActor(actorID)
		}

		next, err := s.findMembership(ctx, db, ScopeSpace, spaceID, newOwnerID)
		if err != nil {
			return err
		}
		if next == nil || !next.IsActive() {
			return NewError(ErrInvalidState, "new owner must be an active space member").
				WithScope(ScopeSpace, spaceID).
				WithUser(newOwnerID)
		}

		res, err := db.NewUpdate().Table("memberships").
			Set("role = ?", RoleAdmin).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", actor.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "TransferSpaceOwnership").Err(); err != nil {
			return err
		}
		res, err = db.NewUpdate().Table("memberships").
			Set("role = ?", RoleOwner).
			Set("join_method = ?", JoinMethodOwnershipTransfer).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", next.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "TransferSpaceOwnership").Err(); err != nil {
			return err
		}
		res, err = db.NewUpdate().Table("spaces").
			Set("owner_id = ?", newOwnerID).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", spaceID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "TransferSpaceOwnership").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceOwnershipTransferred,
			TargetID:    newOwnerID,
			TargetType:  "user",
			Description: "space ownership transferred",
			Changes: map[string]any{
				"space_id": spaceID,
				"before":   actorID,
				"after":    newOwnerID,
			},
		})
		return nil
	})
}

// requireParentMembership enforces the nesting invariant: a user can only hold
// a space membership while actively a member of the parent community.
func (s *Service) requireParentMembership(ctx context.Context, db dbkit.IDB, space *Space, userID string) error {
	parent, err := s.findMembership(ctx, db, ScopeCommunity, space.CommunityID, userID)
	if err != nil {
		return err
	}
	if parent == nil || !parent.IsActive() {
		return NewError(ErrInvalidState, "space membership requires an active community membership").
			WithScope(ScopeSpace, space.ID).
			WithUser(userID)
	}
	return nil
}

// spaceModerationTarget authorizes the actor against a space member for a
// moderation permission.
func (s *Service) spaceModerationTarget(ctx context.Context, db dbkit.IDB, space *Space, actorID, userID string, p Permission) (actor, target *Membership, err error) {
	actor, err = s.requireActiveMember(ctx, db, ScopeSpace, space.ID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.HasPermission(p) {
		return nil, nil, NewError(ErrForbidden, "missing permission: "+string(p)).
			WithScope(ScopeSpace, space.ID).
			WithActor(actorID)
	}

	target, err = s.findMembership(ctx, db, ScopeSpace, space.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil || target.Status == MembershipLeft || target.Status == MembershipKicked {
		return nil, nil, NewError(ErrNotFound, "not a member of this space").
			WithScope(ScopeSpace, space.ID).
			WithUser(userID)
	}
	if !CanModerate(actor.Role, target.Role) {
		return nil, nil, NewError(ErrForbidden, "cannot moderate a member of equal or higher role").
			WithScope(ScopeSpace, space.ID).
			WithActor(actorID).
			WithUser(userID)
	}
	return actor, target, nil
}
