package memberkit

import (
	"context"
	"strings"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// COMMUNITY LIFECYCLE
// ============================================================================

// CreateCommunityParams carries the inputs for CreateCommunity. Visibility
// defaults to public, join policy to open, settings to the defaults.
type CreateCommunityParams struct {
	Name        string
	Slug        string
	Description string
	Visibility  Visibility
	JoinPolicy  JoinPolicy
	Settings    *CommunitySettings
}

func (p *CreateCommunityParams) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewError(ErrValidation, "community name is required")
	}
	if strings.TrimSpace(p.Slug) == "" {
		return NewError(ErrValidation, "community slug is required")
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if !p.Visibility.Valid() {
		return NewError(ErrValidation, "invalid visibility: "+string(p.Visibility))
	}
	if p.JoinPolicy == "" {
		p.JoinPolicy = JoinPolicyOpen
	}
	if !p.JoinPolicy.Valid() {
		return NewError(ErrValidation, "invalid join policy: "+string(p.JoinPolicy))
	}
	return nil
}

// CreateCommunity creates a community and, in the same transaction, its
// founder membership: the creating actor becomes the OWNER and member_count
// starts at one. A taken slug yields Conflict.
func (s *Service) CreateCommunity(ctx context.Context, params CreateCommunityParams) (*Community, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireUserExists(ctx, actorID); err != nil {
		return nil, err
	}

	settings := DefaultCommunitySettings()
	if params.Settings != nil {
		settings = *params.Settings
	}

	community := &Community{
		Name:        params.Name,
		Slug:        params.Slug,
		Description: params.Description,
		Visibility:  params.Visibility,
		JoinPolicy:  params.JoinPolicy,
		Status:      StatusActive,
		OwnerID:     actorID,
		Settings:    settings,
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		res, err := db.NewInsert().Model(community).Returning("*").Exec(ctx)
		if err := dbkit.WithErr(res, err, "CreateCommunity").Err(); err != nil {
			if dbkit.IsDuplicate(err) {
				return NewError(ErrConflict, "slug already in use: "+params.Slug)
			}
			return err
		}

		_, err = s.createMembership(ctx, db, actorID, joinSpec{
			scopeType:   ScopeCommunity,
			scopeID:     community.ID,
			communityID: community.ID,
			role:        RoleOwner,
			method:      JoinMethodFounder,
			action:      ActionMemberJoined,
		})
		if err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: community.ID,
			Action:      ActionCommunityCreated,
			TargetID:    community.ID,
			TargetType:  "community",
			Description: "community created",
			Data: map[string]any{
				"name":        community.Name,
				"slug":        community.Slug,
				"visibility":  community.Visibility,
				"join_policy": community.JoinPolicy,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	community.MemberCount = 1

	s.emit(ctx, "community.created", community.ID, map[string]any{
		"slug":     community.Slug,
		"owner_id": actorID,
	})
	return community, nil
}

// UpdateCommunityParams holds optional field updates; nil means unchanged.
type UpdateCommunityParams struct {
	Name        *string
	Description *string
	Visibility  *Visibility
	JoinPolicy  *JoinPolicy
}

// UpdateCommunity changes community metadata. Requires community.edit.
func (s *Service) UpdateCommunity(ctx context.Context, communityID string, params UpdateCommunityParams) (*Community, error) {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if params.Visibility != nil && !params.Visibility.Valid() {
		return nil, NewError(ErrValidation, "invalid visibility: "+string(*params.Visibility))
	}
	if params.JoinPolicy != nil && !params.JoinPolicy.Valid() {
		return nil, NewError(ErrValidation, "invalid join policy: "+string(*params.JoinPolicy))
	}

	var community *Community
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err = s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		if err := s.requirePermission(ctx, db, ScopeCommunity, communityID, actorID, PermissionCommunityEdit); err != nil {
			return err
		}

		changes := map[string]any{}
		q := db.NewUpdate().Table("communities").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", communityID)
		if params.Name != nil && *params.Name != community.Name {
			if strings.TrimSpace(*params.Name) == "" {
				return NewError(ErrValidation, "community name is required")
			}
			q = q.Set("name = ?", *params.Name)
			changes["name"] = map[string]any{"before": community.Name, "after": *params.Name}
			community.Name = *params.Name
		}
		if params.Description != nil && *params.Description != community.Description {
			q = q.Set("description = ?", *params.Description)
			changes["description"] = map[string]any{"before": community.Description, "after": *params.Description}
			community.Description = *params.Description
		}
		if params.Visibility != nil && *params.Visibility != community.Visibility {
			q = q.Set("visibility = ?", *params.Visibility)
			changes["visibility"] = map[string]any{"before": community.Visibility, "after": *params.Visibility}
			community.Visibility = *params.Visibility
		}
		if params.JoinPolicy != nil && *params.JoinPolicy != community.JoinPolicy {
			q = q.Set("join_policy = ?", *params.JoinPolicy)
			changes["join_policy"] = map[string]any{"before": community.JoinPolicy, "after": *params.JoinPolicy}
			community.JoinPolicy = *params.JoinPolicy
		}
		if len(changes) == 0 {
			return nil
		}

		res, err := q.Exec(ctx)
		if err := dbkit.WithErr(res, err, "UpdateCommunity").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionCommunityUpdated,
			TargetID:    communityID,
			TargetType:  "community",
			Description: "community updated",
			Changes:     changes,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return community, nil
}

// UpdateCommunitySettings replaces the community settings document. Requires
// community.manage_settings.
func (s *Service) UpdateCommunitySettings(ctx context.Context, communityID string, settings CommunitySettings) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err := s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		if err := s.requirePermission(ctx, db, ScopeCommunity, communityID, actorID, PermissionCommunityManageSettings); err != nil {
			return err
		}

		community.Settings = settings
		res, err := db.NewUpdate().Model(community).
			Column("settings", "updated_at").
			WherePK().
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "UpdateCommunitySettings").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionCommunitySettingsUpdated,
			TargetID:    communityID,
			TargetType:  "community",
			Description: "community settings updated",
			Data: map[string]any{
				"allow_member_invites":  settings.AllowMemberInvites,
				"require_post_approval": settings.RequirePostApproval,
				"slow_mode_seconds":     settings.SlowModeSeconds,
				"max_warnings":          settings.MaxWarnings,
			},
		})
		return nil
	})
}

// ArchiveCommunity retires a community. Archived communities reject joins and
// mutations but stay readable. Requires community.delete, which by default
// only the owner holds.
func (s *Service) ArchiveCommunity(ctx context.Context, communityID string) error {
	return s.setCommunityStatus(ctx, communityID, StatusArchived, ActionCommunityArchived, "community archived")
}

// RestoreCommunity reactivates an archived community.
func (s *Service) RestoreCommunity(ctx context.Context, communityID string) error {
	return s.setCommunityStatus(ctx, communityID, StatusActive, ActionCommunityRestored, "community restored")
}

func (s *Service) setCommunityStatus(ctx context.Context, communityID string, status EntityStatus, action AuditAction, description string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err := s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		if err := s.requirePermission(ctx, db, ScopeCommunity, communityID, actorID, PermissionCommunityDelete); err != nil {
			return err
		}
		if community.Status == status {
			return NewError(ErrInvalidState, "community is already "+string(status)).
				WithScope(ScopeCommunity, communityID)
		}

		res, err := db.NewUpdate().Table("communities").
			Set("status = ?", status).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", communityID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "SetCommunityStatus").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      action,
			TargetID:    communityID,
			TargetType:  "community",
			Description: description,
			Changes: map[string]any{
				"before": community.Status,
				"after":  status,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "community."+string(status), communityID, nil)
	return nil
}

// DeleteCommunity tombstones a community. Only the owner can delete, and the
// decision is irreversible: deleted communities disappear from every lookup.
// Membership rows and the audit trail are kept.
func (s *Service) DeleteCommunity(ctx context.Context, communityID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err := s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, communityID, actorID)
		if err != nil {
			return err
		}
		if actor.Role != RoleOwner {
			return NewError(ErrForbidden, "only the owner can delete the community").
				WithScope(ScopeCommunity, communityID).
				WithActor(actorID)
		}

		res, err := db.NewUpdate().Table("communities").
			Set("status = ?", StatusArchived).
			Set("deleted_at = CURRENT_TIMESTAMP").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", communityID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "DeleteCommunity").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionCommunityDeleted,
			TargetID:    communityID,
			TargetType:  "community",
			Description: "community deleted",
			Data:        map[string]any{"slug": community.Slug},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "community.deleted", communityID, nil)
	return nil
}

// requirePermission authorizes an actor's effective permission in a scope,
// failing Forbidden when the membership is missing, inactive or lacking.
func (s *Service) requirePermission(ctx context.Context, db dbkit.IDB, scopeType ScopeType, scopeID, actorID string, p Permission) error {
	actor, err := s.requireActiveMember(ctx, db, scopeType, scopeID, actorID)
	if err != nil {
		return err
	}
	if !actor.HasPermission(p) {
		return NewError(ErrForbidden, "missing permission: "+string(p)).
			WithScope(scopeType, scopeID).
			WithActor(actorID)
	}
	return nil
}
