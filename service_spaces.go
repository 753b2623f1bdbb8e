package memberkit

import (
	"context"
	"strings"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// SPACE LIFECYCLE
// ============================================================================
//
// Spaces are sub-scopes of a community. Creating or managing a space requires
// the corresponding space.* permission in the parent community; the creator
// becomes the space's OWNER.

// CreateSpaceParams carries the inputs for CreateSpace. Visibility defaults to
// public, mode to post; MaxMembers zero means unlimited.
type CreateSpaceParams struct {
	Name        string
	Description string
	Visibility  Visibility
	Mode        SpaceMode
	MaxMembers  int64
}

func (p *CreateSpaceParams) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewError(ErrValidation, "space name is required")
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if !p.Visibility.Valid() {
		return NewError(ErrValidation, "invalid visibility: "+string(p.Visibility))
	}
	if p.Mode == "" {
		p.Mode = SpaceModePost
	}
	if !p.Mode.Valid() {
		return NewError(ErrValidation, "invalid space mode: "+string(p.Mode))
	}
	if p.MaxMembers < 0 {
		return NewError(ErrValidation, "max members cannot be negative")
	}
	return nil
}

// CreateSpace creates a space inside a community. The actor needs an active
// community membership with space.create; space names are unique within the
// community. The creator becomes the space OWNER and space_count increments,
// all in one transaction.
func (s *Service) CreateSpace(ctx context.Context, communityID string, params CreateSpaceParams) (*Space, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	space := &Space{
		CommunityID: communityID,
		Name:        params.Name,
		Description: params.Description,
		Visibility:  params.Visibility,
		Mode:        params.Mode,
		Status:      StatusActive,
		OwnerID:     actorID,
		MaxMembers:  params.MaxMembers,
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
		if err := s.requirePermission(ctx, db, ScopeCommunity, communityID, actorID, PermissionSpaceCreate); err != nil {
			return err
		}

		res, err := db.NewInsert().Model(space).Returning("*").Exec(ctx)
		if err := dbkit.WithErr(res, err, "CreateSpace").Err(); err != nil {
			if dbkit.IsDuplicate(err) {
				return NewError(ErrConflict, "space name already in use: "+params.Name).
					WithScope(ScopeCommunity, communityID)
			}
			return err
		}

		if _, err := s.createMembership(ctx, db, actorID, joinSpec{
			scopeType:   ScopeSpace,
			scopeID:     space.ID,
			communityID: communityID,
			role:        RoleOwner,
			method:      JoinMethodFounder,
			action:      ActionSpaceMemberJoined,
		}); err != nil {
			return err
		}
		if err := s.bumpSpaceCount(ctx, db, communityID, 1); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionSpaceCreated,
			TargetID:    space.ID,
			TargetType:  "space",
			Description: "space created",
			Data: map[string]any{
				"name":       space.Name,
				"visibility": space.Visibility,
				"mode":       space.Mode,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	space.MemberCount = 1

	s.emit(ctx, "space.created", communityID, map[string]any{
		"space_id": space.ID,
		"name":     space.Name,
		"owner_id": actorID,
	})
	return space, nil
}

// UpdateSpaceParams holds optional field updates; nil means unchanged.
type UpdateSpaceParams struct {
	Name        *string
	Description *string
	Visibility  *Visibility
	MaxMembers  *int64
}

// UpdateSpace changes space metadata. The actor needs space.edit either in
// the space itself or in the parent community.
func (s *Service) UpdateSpace(ctx context.Context, spaceID string, params UpdateSpaceParams) (*Space, error) {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if params.Visibility != nil && !params.Visibility.Valid() {
		return nil, NewError(ErrValidation, "invalid visibility: "+string(*params.Visibility))
	}
	if params.MaxMembers != nil && *params.MaxMembers < 0 {
		return nil, NewError(ErrValidation, "max members cannot be negative")
	}

	var space *Space
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err = s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		if err := s.requireSpacePermission(ctx, db, space, actorID, PermissionSpaceEdit); err != nil {
			return err
		}

		changes := map[string]any{}
		q := db.NewUpdate().Table("spaces").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", spaceID)
		if params.Name != nil && *params.Name != space.Name {
			if strings.TrimSpace(*params.Name) == "" {
				return NewError(ErrValidation, "space name is required")
			}
			q = q.Set("name = ?", *params.Name)
			changes["name"] = map[string]any{"before": space.Name, "after": *params.Name}
			space.Name = *params.Name
		}
		if params.Description != nil && *params.Description != space.Description {
			q = q.Set("description = ?", *params.Description)
			changes["description"] = map[string]any{"before": space.Description, "after": *params.Description}
			space.Description = *params.Description
		}
		if params.Visibility != nil && *params.Visibility != space.Visibility {
			q = q.Set("visibility = ?", *params.Visibility)
			changes["visibility"] = map[string]any{"before": space.Visibility, "after": *params.Visibility}
			space.Visibility = *params.Visibility
		}
		if params.MaxMembers != nil && *params.MaxMembers != space.MaxMembers {
			q = q.Set("max_members = ?", *params.MaxMembers)
			changes["max_members"] = map[string]any{"before": space.MaxMembers, "after": *params.MaxMembers}
			space.MaxMembers = *params.MaxMembers
		}
		if len(changes) == 0 {
			return nil
		}

		res, err := q.Exec(ctx)
		if err := dbkit.WithErr(res, err, "UpdateSpace").Err(); err != nil {
			if dbkit.IsDuplicate(err) {
				return NewError(ErrConflict, "space name already in use").
					WithScope(ScopeCommunity, space.CommunityID)
			}
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceUpdated,
			TargetID:    spaceID,
			TargetType:  "space",
			Description: "space updated",
			Changes:     changes,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return space, nil
}

// ArchiveSpace retires a space; archived spaces reject new members. Requires
// space.delete in the space or the parent community.
func (s *Service) ArchiveSpace(ctx context.Context, spaceID string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		space, err := s.requireSpace(ctx, db, spaceID)
		if err != nil {
			return err
		}
		if err := s.requireSpacePermission(ctx, db, space, actorID, PermissionSpaceDelete); err != nil {
			return err
		}
		if space.Status == StatusArchived {
			return NewError(ErrInvalidState, "space is already archived").
				WithScope(ScopeSpace, spaceID)
		}

		res, err := db.NewUpdate().Table("spaces").
			Set("status = ?", StatusArchived).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", spaceID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "ArchiveSpace").Err(); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceArchived,
			TargetID:    spaceID,
			TargetType:  "space",
			Description: "space archived",
		})
		return nil
	})
}

// DeleteSpace tombstones a space and decrements the community space counter.
// Requires space.delete in the space or the parent community.
func (s *Service) DeleteSpace(ctx context.Context, spaceID string) error {
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
		if err := s.requireSpacePermission(ctx, db, space, actorID, PermissionSpaceDelete); err != nil {
			return err
		}

		res, err := db.NewUpdate().Table("spaces").
			Set("status = ?", StatusArchived).
			Set("deleted_at = CURRENT_TIMESTAMP").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", spaceID).
			Exec(ctx)
		if err := dbkit.WithErr(res, err, "DeleteSpace").Err(); err != nil {
			return err
		}
		if err := s.bumpSpaceCount(ctx, db, space.CommunityID, -1); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: space.CommunityID,
			Action:      ActionSpaceDeleted,
			TargetID:    spaceID,
			TargetType:  "space",
			Description: "space deleted",
			Data:        map[string]any{"name": space.Name},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "space.deleted", communityID, map[string]any{"space_id": spaceID})
	return nil
}

// requireSpacePermission authorizes a space-level action: the actor's space
// membership is checked first, then the parent community membership, so
// community admins can manage spaces they never joined.
func (s *Service) requireSpacePermission(ctx context.Context, db dbkit.IDB, space *Space, actorID string, p Permission) error {
	spaceMember, err := s.findMembership(ctx, db, ScopeSpace, space.ID, actorID)
	if err != nil {
		return err
	}
	if spaceMember != nil && spaceMember.IsActive() && spaceMember.HasPermission(p) {
		return nil
	}

	communityMember, err := s.findMembership(ctx, db, ScopeCommunity, space.CommunityID, actorID)
	if err != nil {
		return err
	}
	if communityMember != nil && communityMember.IsActive() && communityMember.HasPermission(p) {
		return nil
	}

	return NewError(ErrForbidden, "missing permission: "+string(p)).
		WithScope(ScopeSpace, space.ID).
		WithActor(actorID)
}
