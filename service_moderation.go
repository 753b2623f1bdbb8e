package memberkit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// MODERATION
// ============================================================================
//
// Suspensions, mutes and warnings operate on community memberships. All of
// them require the member.manage permission and a strictly higher role than
// the target.

// moderationTarget authorizes the actor against the target membership for a
// given permission and returns both rows. Shared by the moderation verbs.
func (s *Service) moderationTarget(ctx context.Context, db dbkit.IDB, communityID, actorID, userID string, p Permission) (actor, target *Membership, err error) {
	actor, err = s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.HasPermission(p) {
		return nil, nil, NewError(ErrForbidden, "missing permission: "+string(p)).
			WithScope(ScopeCommunity, communityID).
			WithActor(actorID)
	}

	target, err = s.findMembership(ctx, db, ScopeCommunity, communityID, userID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil || target.Status == MembershipLeft || target.Status == MembershipKicked {
		return nil, nil, NewError(ErrNotFound, "not a member of this community").
			WithScope(ScopeCommunity, communityID).
			WithUser(userID)
	}
	if !CanModerate(actor.Role, target.Role) {
		return nil, nil, NewError(ErrForbidden, "cannot moderate a member of equal or higher role").
			WithScope(ScopeCommunity, communityID).
			WithActor(actorID).
			WithUser(userID)
	}
	return actor, target, nil
}

// Suspend puts an active member into the suspended state, keeping their role
// and counters intact.
func (s *Service) Suspend(ctx context.Context, communityID, userID, reason string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		_, target, err := s.moderationTarget(ctx, db, communityID, actorID, userID, PermissionMemberManage)
		if err != nil {
			return err
		}
		if target.Status != MembershipActive {
			return NewError(ErrInvalidState, "only active members can be suspended").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}

		if err := s.setMembershipStatus(ctx, db, target, MembershipSuspended, false); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberSuspended,
			TargetID:    userID,
			TargetType:  "user",
			Description: "member suspended",
			Data:        map[string]any{"reason": reason},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "member.suspended", communityID, map[string]any{
		"user_id": userID,
		"reason":  reason,
	})
	return nil
}

// Unsuspend restores a suspended member to active.
func (s *Service) Unsuspend(ctx context.Context, communityID, userID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		_, target, err := s.moderationTarget(ctx, db, communityID, actorID, userID, PermissionMemberManage)
		if err != nil {
			return err
		}
		if target.Status != MembershipSuspended {
			return NewError(ErrInvalidState, "member is not suspended").
				WithScope(ScopeCommunity, communityID).
				WithUser(userID)
		}

		if err := s.setMembershipStatus(ctx, db, target, MembershipActive, false); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberUnsuspended,
			TargetID:    userID,
			TargetType:  "user",
			Description: "member unsuspended",
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "member.unsuspended", communityID, map[string]any{"user_id": userID})
	return nil
}

// Mute silences a member until the given time. A zero time clears the mute.
func (s *Service) Mute(ctx context.Context, communityID, userID string, until time.Time) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if !until.IsZero() && until.Before(time.Now()) {
		return NewError(ErrValidation, "mute expiry must be in the future").
			WithScope(ScopeCommunity, communityID).
			WithUser(userID)
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		_, target, err := s.moderationTarget(ctx, db, communityID, actorID, userID, PermissionMemberManage)
		if err != nil {
			return err
		}

		q := db.NewUpdate().Table("memberships").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", target.ID)
		if until.IsZero() {
			q = q.Set("muted_until = NULL")
		} else {
			q = q.Set("muted_until = ?", until)
		}
		res, err := q.Exec(ctx)
		if err := dbkit.WithErr(res, err, "MuteMember").Err(); err != nil {
			return err
		}

		action := ActionMemberMuted
		description := "member muted"
		if until.IsZero() {
			action = ActionMemberUnmuted
			description = "member unmuted"
		}
		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      action,
			TargetID:    userID,
			TargetType:  "user",
			Description: description,
			Data:        map[string]any{"muted_until": until},
		})
		return nil
	})
	return err
}

// Unmute clears a member's mute.
func (s *Service) Unmute(ctx context.Context, communityID, userID string) error {
	return s.Mute(ctx, communityID, userID, time.Time{})
}

// Warn increments a member's warning counter. When the count reaches the
// community's max_warnings setting the member is automatically suspended in
// the same transaction.
func (s *Service) Warn(ctx context.Context, communityID, userID, reason string) (int, error) {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return 0, err
	}

	var warnings int
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err := s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		_, target, err := s.moderationTarget(ctx, db, communityID, actorID, userID, PermissionMemberManage)
		if err != nil {
			return err
		}

		warnings = target.WarningCount + 1
		res, err := db.NewUpdate().Table("memberships").
			Set("warning_count = warning_count + 1").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", target.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "WarnMember").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionMemberWarned,
			TargetID:    userID,
			TargetType:  "user",
			Description: "member warned",
			Data: map[string]any{
				"reason":        reason,
				"warning_count": warnings,
			},
		})

		maxWarnings := community.Settings.MaxWarnings
		if maxWarnings > 0 && warnings >= maxWarnings && target.Status == MembershipActive {
			if err := s.setMembershipStatus(ctx, db, target, MembershipSuspended, false); err != nil {
				return err
			}
			s.recordAudit(ctx, db, &AuditEntry{
				CommunityID: communityID,
				Action:      ActionMemberSuspended,
				TargetID:    userID,
				TargetType:  "user",
				Description: "member suspended after reaching warning limit",
				Data:        map[string]any{"warning_count": warnings},
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return warnings, nil
}

// ============================================================================
// PERMISSION OVERRIDES
// ============================================================================

// GrantPermission adds a per-member permission grant on top of role defaults.
func (s *Service) GrantPermission(ctx context.Context, scopeType ScopeType, scopeID, userID string, p Permission) error {
	return s.updateOverrides(ctx, scopeType, scopeID, userID, p, ActionPermissionGranted)
}

// DenyPermission adds a per-member denial. Denials override both role defaults
// and grants.
func (s *Service) DenyPermission(ctx context.Context, scopeType ScopeType, scopeID, userID string, p Permission) error {
	return s.updateOverrides(ctx, scopeType, scopeID, userID, p, ActionPermissionDenied)
}

func (s *Service) updateOverrides(ctx context.Context, scopeType ScopeType, scopeID, userID string, p Permission, action AuditAction) error {
	if !p.Valid() {
		return NewError(ErrValidation, "unknown permission: "+string(p))
	}
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		actor, err := s.requireActiveMember(ctx, db, scopeType, scopeID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionCommunityManageRoles) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionCommunityManageRoles)).
				WithScope(scopeType, scopeID).
				WithActor(actorID)
		}

		target, err := s.findMembership(ctx, db, scopeType, scopeID, userID)
		if err != nil {
			return err
		}
		if target == nil || !target.IsActive() {
			return NewError(ErrNotFound, "no active membership for user").
				WithScope(scopeType, scopeID).
				WithUser(userID)
		}
		if !CanModerate(actor.Role, target.Role) {
			return NewError(ErrForbidden, "cannot change permissions of a member of equal or higher role").
				WithScope(scopeType, scopeID).
				WithActor(actorID).
				WithUser(userID)
		}

		grants, denials := target.Grants, target.Denials
		if action == ActionPermissionGranted {
			grants = appendPermission(grants, p)
			denials = removePermission(denials, p)
		} else {
			denials = appendPermission(denials, p)
			grants = removePermission(grants, p)
		}

		target.Grants = permissionArray(grants)
		target.Denials = permissionArray(denials)
		target.UpdatedAt = time.Now().UTC()
		res, err := db.NewUpdate().Model(target).
			Column("grants", "denials", "updated_at").
			WherePK().
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "UpdatePermissionOverrides").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: s.auditCommunityID(ctx, db, scopeType, scopeID),
			Action:      action,
			TargetID:    userID,
			TargetType:  "user",
			Description: "permission override changed",
			Changes: map[string]any{
				"permission": p,
				"grants":     grants,
				"denials":    denials,
			},
		})
		return nil
	})
}

// ClearPermissionOverrides removes all per-member grants and denials, falling
// back to pure role defaults.
func (s *Service) ClearPermissionOverrides(ctx context.Context, scopeType ScopeType, scopeID, userID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		actor, err := s.requireActiveMember(ctx, db, scopeType, scopeID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionCommunityManageRoles) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionCommunityManageRoles)).
				WithScope(scopeType, scopeID).
				WithActor(actorID)
		}

		target, err := s.findMembership(ctx, db, scopeType, scopeID, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return NewError(ErrNotFound, "membership not found").
				WithScope(scopeType, scopeID).
				WithUser(userID)
		}

		target.Grants = permissionArray(nil)
		target.Denials = permissionArray(nil)
		target.UpdatedAt = time.Now().UTC()
		res, err := db.NewUpdate().Model(target).
			Column("grants", "denials", "updated_at").
			WherePK().
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "ClearPermissionOverrides").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: s.auditCommunityID(ctx, db, scopeType, scopeID),
			Action:      ActionPermissionsCleared,
			TargetID:    userID,
			TargetType:  "user",
			Description: "permission overrides cleared",
		})
		return nil
	})
}

// auditCommunityID resolves the community an audit entry belongs to: the scope
// itself for communities, the parent for spaces. Best effort; audit entries
// tolerate an empty community ID.
func (s *Service) auditCommunityID(ctx context.Context, db dbkit.IDB, scopeType ScopeType, scopeID string) string {
	if scopeType == ScopeCommunity {
		return scopeID
	}
	space, err := s.findSpace(ctx, db, scopeID)
	if err != nil || space == nil {
		return ""
	}
	return space.CommunityID
}

func appendPermission(perms []Permission, p Permission) []Permission {
	if containsPermission(perms, p) {
		return perms
	}
	return append(perms, p)
}

func removePermission(perms []Permission, p Permission) []Permission {
	out := perms[:0]
	for _, existing := range perms {
		if existing != p {
			out = append(out, existing)
		}
	}
	return out
}

// permissionArray normalizes a nil slice to an empty one so the array column
// never stores NULL.
func permissionArray(perms []Permission) []Permission {
	if perms == nil {
		return []Permission{}
	}
	return perms
}
