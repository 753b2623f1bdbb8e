package memberkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// JOIN REQUESTS
// ============================================================================
//
// Join requests are the only entry path into communities whose join policy
// requires approval (secret communities always do). At most one pending
// request per (community, user) exists, backed by a partial unique index.
// Decisions use a conditional UPDATE on status = 'pending' so concurrent
// moderators cannot double-process a request.

// CreateJoinRequest opens a membership application. Communities that accept
// direct joins reject requests with InvalidState; existing members get
// Conflict.
func (s *Service) CreateJoinRequest(ctx context.Context, communityID, userID, message string) (*JoinRequest, error) {
	if err := s.requireUserExists(ctx, userID); err != nil {
		return nil, err
	}

	request := &JoinRequest{
		CommunityID: communityID,
		UserID:      userID,
		Message:     message,
		Status:      JoinRequestPending,
	}

	err := s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		community, err := s.requireCommunity(ctx, db, communityID)
		if err != nil {
			return err
		}
		if !community.IsActive() {
			return NewError(ErrInvalidState, "community is not active").
				WithScope(ScopeCommunity, communityID)
		}
		if !community.RequiresApproval() {
			return NewError(ErrInvalidState, "community does not use join requests").
				WithScope(ScopeCommunity, communityID)
		}

		existing, err := s.findMembership(ctx, db, ScopeCommunity, communityID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			switch existing.Status {
			case MembershipBanned:
				return NewError(ErrForbidden, "user is banned from this community").
					WithScope(ScopeCommunity, communityID).
					WithUser(userID)
			case MembershipLeft, MembershipKicked:
				// Former members may apply again.
			default:
				return NewError(ErrConflict, "user is already a member").
					WithScope(ScopeCommunity, communityID).
					WithUser(userID)
			}
		}

		res, err := db.NewInsert().Model(request).Returning("*").Exec(ctx)
		if err := dbkit.WithErr(res, err, "CreateJoinRequest").Err(); err != nil {
			if dbkit.IsDuplicate(err) {
				return NewError(ErrConflict, "a pending join request already exists").
					WithScope(ScopeCommunity, communityID).
					WithUser(userID)
			}
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: communityID,
			Action:      ActionJoinRequestCreated,
			TargetID:    request.ID,
			TargetType:  "join_request",
			Description: "join request created",
			Data:        map[string]any{"user_id": userID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "join_request.created", communityID, map[string]any{
		"request_id": request.ID,
		"user_id":    userID,
	})
	return request, nil
}

// GetJoinRequest returns a join request by ID.
func (s *Service) GetJoinRequest(ctx context.Context, requestID string) (*JoinRequest, error) {
	return s.findJoinRequest(ctx, s.db, requestID)
}

func (s *Service) findJoinRequest(ctx context.Context, db dbkit.IDB, requestID string) (*JoinRequest, error) {
	var request JoinRequest
	err := dbkit.WithErr1(db.NewSelect().Model(&request).
		Where("id = ?", requestID).
		Limit(1).Scan(ctx), "FindJoinRequest").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "join request not found")
		}
		return nil, err
	}
	return &request, nil
}

// ListJoinRequests returns a community's pending requests, oldest first. The
// actor needs member.manage.
func (s *Service) ListJoinRequests(ctx context.Context, communityID string, limit, offset int) ([]JoinRequest, error) {
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
	var requests []JoinRequest
	err = dbkit.WithErr1(s.db.NewSelect().Model(&requests).
		Where("community_id = ?", communityID).
		Where("status = ?", JoinRequestPending).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Scan(ctx), "ListJoinRequests").Err()
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// ApproveJoinRequest grants a pending request: the decision is recorded and
// the membership created in the same transaction. The actor needs an active
// membership of at least MODERATOR.
func (s *Service) ApproveJoinRequest(ctx context.Context, requestID, response string) (*Membership, error) {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	var membership *Membership
	var communityID, userID string
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		request, err := s.findJoinRequest(ctx, db, requestID)
		if err != nil {
			return err
		}
		communityID, userID = request.CommunityID, request.UserID

		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, request.CommunityID, actorID)
		if err != nil {
			return err
		}
		if !actor.Role.AtLeast(RoleModerator) {
			return NewError(ErrForbidden, "approving join requests requires moderator or above").
				WithScope(ScopeCommunity, request.CommunityID).
				WithActor(actorID)
		}
		if !request.CanBeProcessed() {
			return NewError(ErrInvalidState, "join request is already "+string(request.Status)).
				WithScope(ScopeCommunity, request.CommunityID)
		}

		if err := s.decideJoinRequest(ctx, db, request, JoinRequestApproved, actorID, response); err != nil {
			return err
		}

		membership, err = s.createMembership(ctx, db, request.UserID, joinSpec{
			scopeType:   ScopeCommunity,
			scopeID:     request.CommunityID,
			communityID: request.CommunityID,
			role:        RoleMember,
			invitedBy:   actorID,
			method:      JoinMethodRequestApproved,
			action:      ActionMemberJoined,
		})
		if err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: request.CommunityID,
			Action:      ActionJoinRequestApproved,
			TargetID:    request.ID,
			TargetType:  "join_request",
			Description: "join request approved",
			Data: map[string]any{
				"user_id":  request.UserID,
				"response": response,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "join_request.approved", communityID, map[string]any{
		"request_id":  requestID,
		"user_id":     userID,
		"approved_by": actorID,
	})
	return membership, nil
}

// RejectJoinRequest declines a pending request with an optional response
// message. The actor needs an active membership of at least MODERATOR.
func (s *Service) RejectJoinRequest(ctx context.Context, requestID, response string) error {
	actorID, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	var communityID, userID string
	err = s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		request, err := s.findJoinRequest(ctx, db, requestID)
		if err != nil {
			return err
		}
		communityID, userID = request.CommunityID, request.UserID

		actor, err := s.requireActiveMember(ctx, db, ScopeCommunity, request.CommunityID, actorID)
		if err != nil {
			return err
		}
		if !actor.Role.AtLeast(RoleModerator) {
			return NewError(ErrForbidden, "rejecting join requests requires moderator or above").
				WithScope(ScopeCommunity, request.CommunityID).
				WithActor(actorID)
		}
		if !request.CanBeProcessed() {
			return NewError(ErrInvalidState, "join request is already "+string(request.Status)).
				WithScope(ScopeCommunity, request.CommunityID)
		}

		if err := s.decideJoinRequest(ctx, db, request, JoinRequestRejected, actorID, response); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: request.CommunityID,
			Action:      ActionJoinRequestRejected,
			TargetID:    request.ID,
			TargetType:  "join_request",
			Description: "join request rejected",
			Data: map[string]any{
				"user_id":  request.UserID,
				"response": response,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, "join_request.rejected", communityID, map[string]any{
		"request_id":  requestID,
		"user_id":     userID,
		"rejected_by": actorID,
	})
	return nil
}

// CancelJoinRequest withdraws a pending request. Only the requester can
// cancel.
func (s *Service) CancelJoinRequest(ctx context.Context, requestID, userID string) error {
	return s.runInTx(ctx, func(ctx context.Context, db dbkit.IDB) error {
		request, err := s.findJoinRequest(ctx, db, requestID)
		if err != nil {
			return err
		}
		if request.UserID != userID {
			return NewError(ErrForbidden, "only the requester can cancel a join request").
				WithScope(ScopeCommunity, request.CommunityID).
				WithUser(userID)
		}
		if !request.CanBeProcessed() {
			return NewError(ErrInvalidState, "join request is already "+string(request.Status)).
				WithScope(ScopeCommunity, request.CommunityID)
		}

		if err := s.decideJoinRequest(ctx, db, request, JoinRequestCancelled, userID, ""); err != nil {
			return err
		}

		s.recordAudit(ctx, db, &AuditEntry{
			CommunityID: request.CommunityID,
			Action:      ActionJoinRequestCancelled,
			TargetID:    request.ID,
			TargetType:  "join_request",
			Description: "join request cancelled",
			Data:        map[string]any{"user_id": userID},
		})
		return nil
	})
}

// decideJoinRequest moves a request out of pending with a conditional UPDATE;
// zero rows affected means another decision won the race.
func (s *Service) decideJoinRequest(ctx context.Context, db dbkit.IDB, request *JoinRequest, status JoinRequestStatus, processedBy, response string) error {
	res, err := db.NewUpdate().Table("join_requests").
		Set("status = ?", status).
		Set("response = ?", response).
		Set("processed_by = ?", processedBy).
		Set("processed_at = CURRENT_TIMESTAMP").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ? AND status = ?", request.ID, JoinRequestPending).
		Exec(ctx)
	if err := dbkit.WithErr(res, err, "DecideJoinRequest").Err(); err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return dbkit.WithErr1(err, "DecideJoinRequest").Err()
	}
	if affected == 0 {
		return NewError(ErrInvalidState, "join request was already processed").
			WithScope(ScopeCommunity, request.CommunityID)
	}
	request.Status = status
	return nil
}
