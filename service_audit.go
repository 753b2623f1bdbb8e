package memberkit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/sirupsen/logrus"
)

// recordAudit appends an audit entry on the given handle, which inside a
// mutation is the operation's transaction so the entry commits with the state
// change. An append failure never reverts or blocks the mutation; it is logged
// at Error level with the full entry context so it can be alarmed on.
func (s *Service) recordAudit(ctx context.Context, db dbkit.IDB, entry *AuditEntry) {
	audit := GetAuditContext(ctx)
	if entry.ActorID == "" {
		entry.ActorID = audit.ActorID
	}
	entry.IPAddress = audit.IPAddress
	entry.UserAgent = audit.UserAgent
	entry.RequestID = audit.RequestID

	_, err := db.NewInsert().Model(entry.ToModel()).Exec(ctx)
	if err = dbkit.WithErr1(err, "RecordAudit").Err(); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"community_id": entry.CommunityID,
			"action":       entry.Action,
			"actor_id":     entry.ActorID,
			"target_id":    entry.TargetID,
		}).Error("audit append failed; mutation committed without audit row")
	}
}

// GetAuditLogs retrieves audit log entries with optional filters.
//
// Example:
//
//	logs, err := service.GetAuditLogs(ctx, memberkit.NewAuditLogFilter().
//	    WithCommunity(communityID).
//	    WithAction(memberkit.ActionMemberBanned).
//	    WithLimit(50))
func (s *Service) GetAuditLogs(ctx context.Context, filter AuditLogFilter) ([]AuditLogEntry, error) {
	var logs []AuditLogEntry
	q := s.db.NewSelect().Model(&logs)
	if filter.CommunityID != "" {
		q = q.Where("community_id = ?", filter.CommunityID)
	}
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TargetID != "" {
		q = q.Where("target_id = ?", filter.TargetID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.SecurityOnly {
		q = q.Where("severity IN (?, ?)", SeverityHigh, SeverityCritical)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("created_at DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLogs").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}

// GetSecurityEvents returns high and critical severity entries for a
// community within a trailing window, newest first. This backs moderation
// dashboards.
func (s *Service) GetSecurityEvents(ctx context.Context, communityID string, window time.Duration, limit, offset int) ([]AuditLogEntry, error) {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	filter := NewAuditLogFilter().
		WithCommunity(communityID).
		SecurityEvents().
		WithSince(time.Now().Add(-window)).
		WithPagination(limit, offset)
	return s.GetAuditLogs(ctx, filter)
}
