package memberkit

import "time"

// AuditLogFilter provides options for filtering audit log queries.
type AuditLogFilter struct {
	// Filter by community
	CommunityID string

	// Filter by the actor who performed the action
	ActorID string

	// Filter by the target of the action
	TargetID string

	// Filter by action kind
	Action AuditAction

	// Filter by exact severity
	Severity AuditSeverity

	// Restrict to the security view (high and critical severities)
	SecurityOnly bool

	// Filter by time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewAuditLogFilter creates a new AuditLogFilter with default values.
func NewAuditLogFilter() AuditLogFilter {
	return AuditLogFilter{
		Limit: 100,
	}
}

// WithCommunity sets the community filter.
func (f AuditLogFilter) WithCommunity(communityID string) AuditLogFilter {
	f.CommunityID = communityID
	return f
}

// WithActor sets the actor ID filter.
func (f AuditLogFilter) WithActor(actorID string) AuditLogFilter {
	f.ActorID = actorID
	return f
}

// WithTarget sets the target ID filter.
func (f AuditLogFilter) WithTarget(targetID string) AuditLogFilter {
	f.TargetID = targetID
	return f
}

// WithAction sets the action filter.
func (f AuditLogFilter) WithAction(action AuditAction) AuditLogFilter {
	f.Action = action
	return f
}

// WithSeverity sets the exact-severity filter.
func (f AuditLogFilter) WithSeverity(severity AuditSeverity) AuditLogFilter {
	f.Severity = severity
	return f
}

// SecurityEvents restricts results to high and critical severities.
func (f AuditLogFilter) SecurityEvents() AuditLogFilter {
	f.SecurityOnly = true
	return f
}

// WithTimeRange sets the time range filter.
func (f AuditLogFilter) WithTimeRange(since, until time.Time) AuditLogFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithSince sets the start time filter.
func (f AuditLogFilter) WithSince(since time.Time) AuditLogFilter {
	f.Since = since
	return f
}

// WithUntil sets the end time filter.
func (f AuditLogFilter) WithUntil(until time.Time) AuditLogFilter {
	f.Until = until
	return f
}

// WithLimit sets the limit for results.
func (f AuditLogFilter) WithLimit(limit int) AuditLogFilter {
	f.Limit = limit
	return f
}

// WithOffset sets the offset for pagination.
func (f AuditLogFilter) WithOffset(offset int) AuditLogFilter {
	f.Offset = offset
	return f
}

// WithPagination sets both limit and offset.
func (f AuditLogFilter) WithPagination(limit, offset int) AuditLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}
