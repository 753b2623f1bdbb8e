package memberkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// INTERNAL LOOKUPS
// ============================================================================
//
// Internal finders take the database handle explicitly so they can run on the
// operation's transaction. Absence is (nil, nil); callers decide whether that
// is NotFound, Conflict or fine.

func (s *Service) findCommunity(ctx context.Context, db dbkit.IDB, id string) (*Community, error) {
	var community Community
	err := dbkit.WithErr1(db.NewSelect().Model(&community).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Limit(1).Scan(ctx), "FindCommunity").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &community, nil
}

func (s *Service) findCommunityBySlug(ctx context.Context, db dbkit.IDB, slug string) (*Community, error) {
	var community Community
	err := dbkit.WithErr1(db.NewSelect().Model(&community).
		Where("slug = ?", slug).
		Where("deleted_at IS NULL").
		Limit(1).Scan(ctx), "FindCommunityBySlug").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &community, nil
}

func (s *Service) findSpace(ctx context.Context, db dbkit.IDB, id string) (*Space, error) {
	var space Space
	err := dbkit.WithErr1(db.NewSelect().Model(&space).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Limit(1).Scan(ctx), "FindSpace").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &space, nil
}

func (s *Service) findMembership(ctx context.Context, db dbkit.IDB, scopeType ScopeType, scopeID, userID string) (*Membership, error) {
	var membership Membership
	err := dbkit.WithErr1(db.NewSelect().Model(&membership).
		Where("scope_type = ? AND scope_id = ? AND user_id = ?", scopeType, scopeID, userID).
		Limit(1).Scan(ctx), "FindMembership").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// requireCommunity loads an existing, non-deleted community or fails NotFound.
func (s *Service) requireCommunity(ctx context.Context, db dbkit.IDB, id string) (*Community, error) {
	community, err := s.findCommunity(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, NewError(ErrNotFound, "community not found").
			WithScope(ScopeCommunity, id)
	}
	return community, nil
}

// requireSpace loads an existing, non-deleted space or fails NotFound.
func (s *Service) requireSpace(ctx context.Context, db dbkit.IDB, id string) (*Space, error) {
	space, err := s.findSpace(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, NewError(ErrNotFound, "space not found").
			WithScope(ScopeSpace, id)
	}
	return space, nil
}

// requireActiveMember loads the actor's membership in a scope and fails
// Forbidden unless it is active. Used to authorize every privileged mutation.
func (s *Service) requireActiveMember(ctx context.Context, db dbkit.IDB, scopeType ScopeType, scopeID, userID string) (*Membership, error) {
	membership, err := s.findMembership(ctx, db, scopeType, scopeID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil || !membership.IsActive() {
		return nil, NewError(ErrForbidden, "not an active member").
			WithScope(scopeType, scopeID).
			WithUser(userID)
	}
	return membership, nil
}

// ============================================================================
// PUBLIC LOOKUPS
// ============================================================================

// GetCommunity returns a community by ID.
func (s *Service) GetCommunity(ctx context.Context, id string) (*Community, error) {
	return s.requireCommunity(ctx, s.db, id)
}

// GetCommunityBySlug returns a community by its unique slug.
func (s *Service) GetCommunityBySlug(ctx context.Context, slug string) (*Community, error) {
	community, err := s.findCommunityBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, NewError(ErrNotFound, "community not found")
	}
	return community, nil
}

// GetSpace returns a space by ID.
func (s *Service) GetSpace(ctx context.Context, id string) (*Space, error) {
	return s.requireSpace(ctx, s.db, id)
}

// GetMembership returns the membership for a (scope, user) pair.
func (s *Service) GetMembership(ctx context.Context, scopeType ScopeType, scopeID, userID string) (*Membership, error) {
	membership, err := s.findMembership(ctx, s.db, scopeType, scopeID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, NewError(ErrNotFound, "membership not found").
			WithScope(scopeType, scopeID).
			WithUser(userID)
	}
	return membership, nil
}

// ListMembers returns memberships in a scope, newest first. Terminated rows
// (left, kicked) are excluded.
func (s *Service) ListMembers(ctx context.Context, scopeType ScopeType, scopeID string, limit, offset int) ([]Membership, error) {
	if limit <= 0 {
		limit = 100
	}
	var memberships []Membership
	err := dbkit.WithErr1(s.db.NewSelect().Model(&memberships).
		Where("scope_type = ? AND scope_id = ?", scopeType, scopeID).
		Where("status NOT IN (?, ?)", MembershipLeft, MembershipKicked).
		Order("joined_at DESC").
		Limit(limit).Offset(offset).
		Scan(ctx), "ListMembers").Err()
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListSpaces returns the non-deleted spaces of a community.
func (s *Service) ListSpaces(ctx context.Context, communityID string, limit, offset int) ([]Space, error) {
	if limit <= 0 {
		limit = 100
	}
	var spaces []Space
	err := dbkit.WithErr1(s.db.NewSelect().Model(&spaces).
		Where("community_id = ?", communityID).
		Where("deleted_at IS NULL").
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Scan(ctx), "ListSpaces").Err()
	if err != nil {
		return nil, err
	}
	return spaces, nil
}

// GetChecker loads a membership and wraps it in a Checker for repeated
// permission checks. An absent membership yields a deny-all checker.
func (s *Service) GetChecker(ctx context.Context, scopeType ScopeType, scopeID, userID string) (*Checker, error) {
	membership, err := s.findMembership(ctx, s.db, scopeType, scopeID, userID)
	if err != nil {
		return nil, err
	}
	return NewChecker(membership), nil
}

// GetCheckerFromContext creates a Checker using the user ID from context.
func (s *Service) GetCheckerFromContext(ctx context.Context, scopeType ScopeType, scopeID string) (*Checker, error) {
	userID := GetUserID(ctx)
	if userID == "" {
		return nil, NewError(ErrNoActorID, "no user ID in context")
	}
	return s.GetChecker(ctx, scopeType, scopeID, userID)
}
