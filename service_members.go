package memberkit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// COMMUNITY MEMBERSHIP LIFECYCLE
// ============================================================================
//
// Every mutation runs in a transaction: the membership row change, the
// aggregate counter update and the audit entry commit or roll back together.
// The (scope_type, scope_id, user_id) uniqueness is enforced by the schema;
// re-joins after leave/kick reactivate the existing row instead of inserting.

// joinSpec carries everything the shared join primitive needs to admit a user
// into a community or space scope.
type joinSpec struct {
	scopeType   ScopeType
	scopeID     string
	communityID string
	role        Role
	invitedBy   string
	method      JoinMethod
	action      AuditAction
	event       string
}

// createMembership admits a user into a scope. It reactivates terminated rows,
// rejects banned users with Forbidden and duplicate active rows with Conflict.
// Must run inside a transaction started by the caller via runInTx.
func (s *Service) createMembership(ctx context.Context, db dbkit.IDB, userID string, spec joinSpec) (*Membership, error) {
	existing, err := s.findMembership(ctx, db, spec.scopeType, spec.scopeID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var membership *Membership

	if existing != nil {
		switch existing.Status {
		case MembershipBanned:
			return nil, NewError(ErrForbidden, "user is banned from this "+string(spec.scopeType)).
				WithScope(spec.scopeType, spec.scopeID).
				WithUser(userID)
		case MembershipLeft, MembershipKicked:
			// Reactivate in place so the uniqueness constraint holds and the
			// original row keeps its history.
			res, err := db.NewUpdate().Table("memberships").
				Set("status = ?", MembershipActive).
				Set("role = ?", spec.role).
				Set("join_method = ?", spec.method).
				Set("invited_by = ?", spec.invitedBy).
				Set("joined_at = ?", now).
				Set("left_at = NULL").
				Set("updated_at = CURRENT_TIMESTAMP").
				Where("id = ?", existing.ID).
				Exec(ctx)
			if err := dbkit.WithErr(res, err, "ReactivateMembership").Err(); err != nil {
				return nil, err
			}
			existing.Status = MembershipActive
			existing.Role = spec.role
			existing.JoinMethod = spec.method
			existing.InvitedBy = spec.invitedBy
			existing.JoinedAt = now
			existing.LeftAt = time.Time{}
			membership = existing
		default:
			return nil, NewError(ErrConflict, "user is already a member").
				WithScope(spec.scopeType, spec.scopeID).
				WithUser(userID)
		}
	} else {
		membership = &Membership{
			ScopeType:  spec.scopeType,
			ScopeID:    spec.scopeID,
			UserID:     userID,
			Role:       spec.role,
			Status:     MembershipActive,
			JoinedAt:   now,
			InvitedBy:  spec.invitedBy,
			JoinMethod: spec.method,
		}
		res, err := db.NewInsert().Model(membership).Exec(ctx)
		if err := dbkit.WithErr(res, err, "CreateMembership").Err(); err != nil {
			if dbkit.IsDuplicate(err) {
				// Concurrent join on the same (scope, user) pair.
				return nil, NewError(ErrConflict, "user is already a member").
					WithScope(spec.scopeType, spec.scopeID).
					WithUser(userID)
			}
			return nil, err
		}
	}

	if err := s.bumpMemberCount(ctx, db, spec.scopeType, spec.scopeID, 1); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, db, &AuditEntry{
		CommunityID: spec.communityID,
		Action:      spec.action,
		TargetID:    userID,
		TargetType:  "user",
		Description: "user joined " + string(spec.scopeType),
		Data: map[string]any{
			"scope_type":  spec.scopeType,
			"scope_id":    spec.scopeID,
			"role":        spec.role,
			"join_method": spec.method,
		},
	})

	return membership, nil
}

// setMembershipStatus transitions a membership row and keeps the counter in
// step: the counter moves only when the transition crosses the counted
// boundary (active/pending/suspended vs banned/left/kicked).
func (s *Service) setMembershipStatus(ctx context.Context, db dbkit.IDB, m *Membership, status MembershipStatus, terminal bool) error {
	q := db.NewUpdate().Table("memberships").
		Set("status = ?", status).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", m.ID)
	if terminal {
		q = q.Set("left_at = CURRENT_TIMESTAMP")
	}
	res, err := q.Exec(ctx)
	if err := dbkit.WithErr(res, err, "SetMembershipStatus").Err(); err != nil {
		return err
	}

	delta := 0
	if m.Status.counted() && !status.counted() {
		delta = -1
	} else if !m.Status.counted() && status.counted() {
		delta = 1
	}
	if delta != 0 {
		if err := s.bumpMemberCount(ctx, db, m.ScopeType, m.ScopeID, delta); err != nil {
			return err
		}
	}
	m.Status = status
	return nil
}

// Join admits a user directly into an open community. Communities requiring
// approval or an invite reject direct joins with Forbidden.
func (s *Service) Join(ctx context.Context, communityID, userID string) (*Membership, error) {
	if err := s.requireUserExists(ctx, userID); err != nil {
		return nil, err
	}

	var membership *Membership
	err := s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err := s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		if !community.IsActive() {
			return NewError(ErrInvalidState, "community is not active").
				WithScope(ScopeCommunity, communityID)
		}
		switch {
		case community.JoinPolicy == JoinPolicyInviteOnly:
			return NewError(ErrForbidden, "community is invite only").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		case community.RequiresApproval():
			return NewError(ErrForbidden, "community requires join approval").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}

		membership, err = s.createMembership(ctx, db, userID, joinSpec{
			scopeType:   ScopeCommunity,
			scopeID:     communityID,
			communityID: communityID,
			role:        RoleMember,
			method:      JoinMethodDirect,
			action:      ActionMemberJoined,
			event:       "member.joined",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "member.joined", communityID, map[string]any{
		"user_id":     userID,
		"join_method": JoinMethodDirect,
	})
	return membership, nil
}

// Leave removes the user from a community at their own request. Owners must
// transfer ownership or delete the community first.
func (s *Service) Leave(ctx context.Context, communityID, userID string) error {
	err := s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		membership, err := s.findMembership(ctx, db, ScopeCommunity, communityID, userID)
		if err != nil {
			return err
		}
		if membership == nil || membership.Status == MembershipLeft || membership.Status == MembershipKicked {
			return NewError(ErrNotFound, "not a member of this community").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}
		if membership.Role == RoleOwner {
			return NewError(ErrForbidden, "owner must transfer ownership or delete the community before leaving").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}

		if err := s.setMembershipStatus(ctx, db, membership, MembershipLeft, true); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberLeft,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user left community",
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "member.left", communityID, map[string]any{"user_id": userID})
	return nil
}

// Remove kicks a member out of a community. The actor needs the member.kick
// permission and must strictly outrank the target; owners cannot be removed.
// Removing yourself is the same as leaving.
func (s *Service) Remove(ctx context.Context, communityID, userID, reason string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if actorID == userID {
		return s.Leave(ctx, communityID, userID)
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionMemberKick) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionMemberKick)).
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}

		membership, err := s.findMembership(ctx, db, ScopeCommunity, communityID, userID)
		if err != nil {
			return err
		}
		if membership == nil || membership.Status == MembershipLeft || membership.Status == MembershipKicked {
			return NewError(ErrNotFound, "not a member of this community").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}
		if membership.Role == RoleOwner {
			return NewError(ErrForbidden, "owner cannot be removed").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}
		if !CanModerate(actor.Role, membership.Role) {
			return NewError(ErrForbidden, "cannot remove a member of equal or higher role").
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID).
				WithUser(userID)
		}

		if err := s.setMembershipStatus(ctx, db, membership, MembershipKicked, true); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberKicked,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user removed from community",
			Data:        map[string]any{"reason": reason},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "member.kicked", communityID, map[string]any{
		"user_id": userID,
		"reason":  reason,
	})
	return nil
}

// UpdateRole changes a member's role. Ownership is never assigned here; use
// TransferOwnership. The actor must outrank both the target's current role and
// the new role, which also rules out changing your own role.
func (s *Service) UpdateRole(ctx context.Context, communityID, userID string, newRole Role) (*Membership, error) {
	if !newRole.Valid() {
		return nil, NewError(ErrValidation, "invalid role").WithRole(newRole)
	}
	if newRole == RoleOwner {
		return nil, NewError(ErrForbidden, "ownership is assigned through ownership transfer").
			WithScope(ScopeCommunity, communityID).
			WithUser(userID)
	}
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	var membership *Membership
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionCommunityManageRoles) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionCommunityManageRoles)).
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}

		membership, err = s.findMembership(ctx, db, ScopeCommunity, communityID, userID)
		if err != nil {
			return err
		}
		if membership == nil || !membership.IsActive() {
			return NewError(ErrNotFound, "no active membership for user").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}
		if membership.Role == RoleOwner {
			return NewError(ErrForbidden, "owner role cannot be changed here").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}
		if membership.Role == newRole {
			return NewError(ErrInvalidState, "member already has this role").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID).
				WithRole(newRole)
		}
		if !CanModerate(actor.Role, membership.Role) || !CanPromoteTo(actor.Role, newRole) {
			return NewError(ErrForbidden, "cannot assign a role at or above your own").
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID).
				WithRole(newRole)
		}

		before := membership.Role
		res, err := db.NewUpdate().Table("memberships").
			Set("role = ?", newRole).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", membership.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "UpdateMembershipRole").Err(); err != nil {
			return err
		}
		membership.Role = newRole

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberRoleChanged,
			TargetID:    userID,
			TargetType:  "user",
			Description: "member role changed",
			Changes: map[string]any{
				"before": before,
				"after":  newRole,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "member.role_changed", communityID, map[string]any{
		"user_id": userID,
		"role":    newRole,
	})
	return membership, nil
}

// Ban blocks a user from a community. Owners and admins cannot be banned; an
// already banned user yields InvalidState. The target does not need to be a
// current member: banning a former member blocks them from re-joining.
func (s *Service) Ban(ctx context.Context, communityID, userID, reason string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionMemberBan) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionMemberBan)).
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}

		membership, err := s.findMembership(ctx, db, ScopeCommunity, communityID, userID)
		if err != nil {
			return err
		}
		if membership == nil {
			return NewError(ErrNotFound, "no membership record for user").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}
		if membership.Status == MembershipBanned {
			return NewError(ErrInvalidState, "user is already banned").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}
		if membership.Role == RoleOwner || membership.Role == RoleAdmin {
			return NewError(ErrForbidden, "owners and admins cannot be banned").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID).
				WithRole(membership.Role)
		}
		if !CanModerate(actor.Role, membership.Role) {
			return NewError(ErrForbidden, "cannot ban a member of equal or higher role").
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID).
				WithUser(userID)
		}

		if err := s.setMembershipStatus(ctx, db, membership, MembershipBanned, false); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberBanned,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user banned from community",
			Data:        map[string]any{"reason": reason},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "member.banned", communityID, map[string]any{
		"user_id": userID,
		"reason":  reason,
	})
	return nil
}

// Unban lifts a ban and restores the user to an active MEMBER role.
func (s *Service) Unban(ctx context.Context, communityID, userID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionMemberBan) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionMemberBan)).
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}

		membership, err := s.findMembership(ctx, db, ScopeCommunity, communityID, userID)
		if err != nil {
			return err
		}
		if membership == nil || membership.Status != MembershipBanned {
			return NewError(ErrInvalidState, "user is not banned").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}

		res, err := db.NewUpdate().Table("memberships").
			Set("status = ?", MembershipActive).
			Set("role = ?", RoleMember).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", membership.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "UnbanMember").Err(); err != nil {
			return err
		}
		if err := s.bumpMemberCount(ctx, db, ScopeCommunity, communityID, 1); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberUnbanned,
			TargetID:    userID,
			TargetType:  "user",
			Description: "user unbanned",
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "member.unbanned", communityID, map[string]any{"user_id": userID})
	return nil
}

// TransferOwnership atomically hands the community over to another active
// member. The previous owner becomes an ADMIN.
func (s *Service) TransferOwnership(ctx context.Context, communityID, newOwnerID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if actorID == newOwnerID {
		return NewError(ErrInvalidState, "cannot transfer ownership to yourself").
			WithScope(ScopeCommunity, communityID).
			WithActor(actorID)
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
		if err != nil {
			return err
		}
		if actor.Role != RoleOwner {
			return NewError(ErrForbidden, "only the owner can transfer ownership").
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}

		next, err := s.findMembership(ctx, db, ScopeCommunity, communityID, newOwnerID)
		if err != nil {
			return err
		}
		if next == nil || !next.IsActive() {
			return NewError(ErrInvalidState, "new owner must be an active member").
				WithScope(ScopeCommunity, communityID).
				WithUser(newOwnerID)
		}

		res, err := db.NewUpdate().Table("memberships").
			Set("role = ?", RoleAdmin).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", actor.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "TransferOwnership").Err(); err != nil {
			return err
		}
		res, err = db.NewUpdate().Table("memberships").
			Set("role = ?", RoleOwner).
			Set("join_method = ?", JoinMethodOwnershipTransfer).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", next.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "TransferOwnership").Err(); err != nil {
			return err
		}
		res, err = db.NewUpdate().Table("communities").
			Set("owner_id = ?", newOwnerID).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", communityID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "TransferOwnership").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionOwnershipTransferred,
			TargetID:    newOwnerID,
			TargetType:  "user",
			Description: "community ownership transferred",
			Changes: map[string]any{
				"before": actorID,
				"after":  newOwnerID,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "community.ownership_transferred", communityID, map[string]any{
		"previous_owner_id": actorID,
		"new_owner_id":      newOwnerID,
	})
	return nil
}

// CheckPermission reports whether a user holds at least the required role as
// an active member of a community. Absent or inactive memberships check false.
func (s *Service) CheckPermission(ctx context.Context, communityID, userID string, required Role) (bool, error) {
	membership, err := s.findMembership(ctx, s.db, ScopeCommunity, communityID, userID)
	if err != nil {
		return false, err
	}
	if membership == nil || !membership.IsActive() {
		return false, nil
	}
	return membership.Role.AtLeast(required), nil
}

// HasPermission reports whether a user's effective permission set in a scope
// includes the given permission, after role defaults, grants and denials.
func (s *Service) HasPermission(ctx context.Context, scopeType ScopeType, scopeID, userID string, p Permission) (bool, error) {
	membership, err := s.findMembership(ctx, s.db, scopeType, scopeID, userID)
	if err != nil {
		return false, err
	}
	if membership == nil {
		return false, nil
	}
	return membership.HasPermission(p), nil
}
