package memberkit

import (
	"context"
	"strings"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/google/uuid"
)

// ============================================================================
// INVITES
// ============================================================================
//
// An invite is a single-use token into a community. Email invites bind to a
// recipient address and are verified against the user directory at acceptance;
// link invites are redeemable by anyone holding the code. Redemption is
// guarded by a conditional UPDATE so two concurrent accepts of the same code
// cannot both succeed.

// InviteParams carries the inputs for CreateInvite. A non-empty Email makes
// the invite email-bound; ExpiresAt zero means the invite never expires.
type InviteParams struct {
	Email     string
	Message   string
	ExpiresAt time.Time
}

// CreateInvite issues an invite into a community. The actor needs an active
// membership with member.invite; whether plain members hold it is controlled
// by the allow_member_invites community setting.
func (s *Service) CreateInvite(ctx context.Context, communityID string, params InviteParams) (*Invite, error) {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !params.ExpiresAt.IsZero() && params.ExpiresAt.Before(time.Now()) {
		return nil, NewError(ErrValidation, "invite expiry must be in the future")
	}

	kind := InviteLink
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email != "" {
		kind = InviteEmail
	}

	invite := &Invite{
		CommunityID: communityID,
		Kind:        kind,
		Email:       email,
		Code:        uuid.NewString(),
		Message:     params.Message,
		CreatedBy:   actorID,
		ExpiresAt:   params.ExpiresAt,
		Active:      true,
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err := s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		if !community.IsActive() {
			return NewError(ErrInvalidState, "community is not active").
				WithScope(ScopeCommunity, communityID)
		}

		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
		if err != nil {
			return err
		}
		if !actor.HasPermission(PermissionMemberInvite) {
			return NewError(ErrForbidden, "missing permission: "+string(PermissionMemberInvite)).
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}
		if !community.Settings.AllowMemberInvites && !actor.Role.AtLeast(RoleModerator) {
			return NewError(ErrForbidden, "member invites are disabled for this community").
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}

		res, err := db.NewInsert().Model(invite).Returning("*").Exec(ctx)
		if err := dbkit.WithErr(res, err, "CreateInvite").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionInviteCreated,
			TargetID:    invite.ID,
			TargetType:  "invite",
			Description: "invite created",
			Data: map[string]any{
				"kind":  invite.Kind,
				"email": invite.Email,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "invite.created", communityID, map[string]any{
		"invite_id":  invite.ID,
		"kind":       invite.Kind,
		"created_by": actorID,
	})
	return invite, nil
}

// GetInviteByCode returns an invite by its code, used or not.
func (s *Service) GetInviteByCode(ctx context.Context, code string) (*Invite, error) {
	return s.findInviteByCode(ctx, s.db, code)
}

func (s *Service) findInviteByCode(ctx context.Context, db dbkit.IDB, code string) (*Invite, error) {
	var invite Invite
	err := dbkit.WithErr1(db.NewSelect().Model(&invite).
		Where("code = ?", code).
		Limit(1).Scan(ctx), "FindInvite").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "invite not found")
		}
		return nil, err
	}
	return &invite, nil
}

// ListInvites returns the currently redeemable invites of a community. The
// actor needs member.manage.
func (s *Service) ListInvites(ctx context.Context, communityID string, limit, offset int) ([]Invite, error) {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requirePermission(ctx, s.db, ScopeCommunity, communityID, actorID, PermissionMemberManage); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var invites []Invite
	err = dbkit.WithErr1(s.db.NewSelect().Model(&invites).
		Where("community_id = ?", communityID).
		Where("active = TRUE AND used_at IS NULL").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Scan(ctx), "ListInvites").Err()
	if err != nil {
		return nil, err
	}
	return invites, nil
}

// AcceptInvite redeems an invite code for a user, creating an active
// membership with the invite recorded as the join method. Email-bound invites
// require the user's directory email to match the invited address.
func (s *Service) AcceptInvite(ctx context.Context, code, userID string) (*Membership, error) {
	if err := s.requireUserExists(ctx, userID); err != nil {
		return nil, err
	}

	var membership *Membership
	var communityID string
	err := s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		invite, err := s.findInviteByCode(ctx, db, code)
		if err != nil {
			return err
		}
		communityID = invite.CommunityID
		if err := invite.Redeemable(time.Now()); err != nil {
			return err
		}

		if invite.Kind == InviteEmail {
			if s.directory == nil {
				return NewError(ErrInvalidState, "email invites require a user directory").
					WithScope(ScopeCommunity, invite.CommunityID)
			}
			dctx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
			email, err := s.directory.UserEmail(dctx, userID)
			cancel()
			if err != nil {
				return NewError(ErrDatabaseError, "user directory lookup failed: "+err.Error())
			}
			if !strings.EqualFold(strings.TrimSpace(email), invite.Email) {
				return NewError(ErrForbidden, "invite was issued to a different email address").
					WithScope(ScopeCommunity, invite.CommunityID).
					WithUser(userID)
			}
		}

		community, err := s.requireCommunity(ctx, db, invite.CommunityID)
		if err != nil {
			return err
		}
		if !community.IsActive() {
			return NewError(ErrInvalidState, "community is not active").
				WithScope(ScopeCommunity, invite.CommunityID)
		}

		// Single redemption: only one transaction can flip used_at.
		res, err := db.NewUpdate().Table("invites").
			Set("used_at = CURRENT_TIMESTAMP").
			Set("used_by = ?", userID).
			Set("active = FALSE").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ? AND active = TRUE AND used_at IS NULL", invite.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "RedeemInvite").Err(); err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return dbkit.WithErr1(err, "RedeemInvite").Err()
		}
		if affected == 0 {
			return NewError(ErrInvalidState, "invite has already been used").
				WithScope(ScopeCommunity, invite.CommunityID)
		}

		membership, err = s.createMembership(ctx, db, userID, joinSpec{
			scopeType:   ScopeCommunity,
			scopeID:     invite.CommunityID,
			communityID: invite.CommunityID,
			role:        RoleMember,
			invitedBy:   invite.CreatedBy,
			method:      JoinMethodInvite,
			action:      ActionMemberJoined,
		})
		if err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: invite.CommunityID,
			Action:      ActionInviteAccepted,
			TargetID:    invite.ID,
			TargetType:  "invite",
			Description: "invite accepted",
			Data: map[string]any{
				"user_id":    userID,
				"invited_by": invite.CreatedBy,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "invite.accepted", communityID, map[string]any{
		"user_id": userID,
		"code":    code,
	})
	return membership, nil
}

// DeclineInvite marks an invite as declined by its recipient. The code can
// not be redeemed afterwards.
func (s *Service) DeclineInvite(ctx context.Context, code, userID string) error {
	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		invite, err := s.findInviteByCode(ctx, db, code)
		if err != nil {
			return err
		}
		if err := invite.Redeemable(time.Now()); err != nil {
			return err
		}

		res, err := db.NewUpdate().Table("invites").
			Set("declined_at = CURRENT_TIMESTAMP").
			Set("active = FALSE").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ? AND active = TRUE AND used_at IS NULL", invite.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "DeclineInvite").Err(); err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return dbkit.WithErr1(err, "DeclineInvite").Err()
		}
		if affected == 0 {
			return NewError(ErrInvalidState, "invite is no longer open").
				WithScope(ScopeCommunity, invite.CommunityID)
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: invite.CommunityID,
			Action:      ActionInviteDeclined,
			TargetID:    invite.ID,
			TargetType:  "invite",
			Description: "invite declined",
			Data:        map[string]any{"user_id": userID},
		})
		return nil
	})
}

// RevokeInvite withdraws an open invite. The actor needs member.manage in the
// community; invite creators below MODERATOR cannot withdraw their own codes.
func (s *Service) RevokeInvite(ctx context.Context, inviteID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		var invite Invite
		err := dbkit.WithErr1(db.NewSelect().Model(&invite).
			Where("id = ?", inviteID).
			Limit(1).Scan(ctx), "FindInvite").Err()
		if err != nil {
			if dbkit.IsNotFound(err) {
				return NewError(ErrNotFound, "invite not found")
			}
			return err
		}

		if err := s.requirePermission(ctx, db, ScopeCommunity, invite.CommunityID, actorID, PermissionMemberManage); err != nil {
			return err
		}
		if !invite.Active || !invite.UsedAt.IsZero() {
			return NewError(ErrInvalidState, "invite is no longer open").
				WithScope(ScopeCommunity, invite.CommunityID)
		}

		res, err := db.NewUpdate().Table("invites").
			Set("active = FALSE").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ? AND active = TRUE AND used_at IS NULL", invite.ID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "RevokeInvite").Err(); err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return dbkit.WithErr1(err, "RevokeInvite").Err()
		}
		if affected == 0 {
			return NewError(ErrInvalidState, "invite is no longer open").
				WithScope(ScopeCommunity, invite.CommunityID)
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: invite.CommunityID,
			Action:      ActionInviteRevoked,
			TargetID:    invite.ID,
			TargetType:  "invite",
			Description: "invite revoked",
		})
		return nil
	})
}
