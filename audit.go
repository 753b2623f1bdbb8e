package memberkit

import "time"

// AuditSeverity classifies how sensitive an audited action is.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditAction is the closed enum of auditable action kinds.
type AuditAction string

const (
	ActionCommunityCreated         AuditAction = "community_created"
	ActionCommunityUpdated         AuditAction = "community_updated"
	ActionCommunitySettingsUpdated AuditAction = "community_settings_updated"
	ActionCommunityArchived        AuditAction = "community_archived"
	ActionCommunityRestored        AuditAction = "community_restored"
	ActionCommunityDeleted         AuditAction = "community_deleted"
	ActionOwnershipTransferred     AuditAction = "ownership_transferred"

	ActionMemberJoined       AuditAction = "member_joined"
	ActionMemberLeft         AuditAction = "member_left"
	ActionMemberKicked       AuditAction = "member_kicked"
	ActionMemberBanned       AuditAction = "member_banned"
	ActionMemberUnbanned     AuditAction = "member_unbanned"
	ActionMemberSuspended    AuditAction = "member_suspended"
	ActionMemberUnsuspended  AuditAction = "member_unsuspended"
	ActionMemberRoleChanged  AuditAction = "member_role_changed"
	ActionMemberMuted        AuditAction = "member_muted"
	ActionMemberUnmuted      AuditAction = "member_unmuted"
	ActionMemberWarned       AuditAction = "member_warned"
	ActionPermissionGranted  AuditAction = "permission_granted"
	ActionPermissionDenied   AuditAction = "permission_denied"
	ActionPermissionsCleared AuditAction = "permissions_cleared"

	ActionSpaceCreated              AuditAction = "space_created"
	ActionSpaceUpdated              AuditAction = "space_updated"
	ActionSpaceArchived             AuditAction = "space_archived"
	ActionSpaceDeleted              AuditAction = "space_deleted"
	ActionSpaceMemberJoined         AuditAction = "space_member_joined"
	ActionSpaceMemberLeft           AuditAction = "space_member_left"
	ActionSpaceMemberKicked         AuditAction = "space_member_kicked"
	ActionSpaceMemberBanned         AuditAction = "space_member_banned"
	ActionSpaceMemberUnbanned       AuditAction = "space_member_unbanned"
	ActionSpaceMemberRoleChanged    AuditAction = "space_member_role_changed"
	ActionSpaceOwnershipTransferred AuditAction = "space_ownership_transferred"

	ActionInviteCreated  AuditAction = "invite_created"
	ActionInviteAccepted AuditAction = "invite_accepted"
	ActionInviteDeclined AuditAction = "invite_declined"
	ActionInviteRevoked  AuditAction = "invite_revoked"

	ActionJoinRequestCreated   AuditAction = "join_request_created"
	ActionJoinRequestApproved  AuditAction = "join_request_approved"
	ActionJoinRequestRejected  AuditAction = "join_request_rejected"
	ActionJoinRequestCancelled AuditAction = "join_request_cancelled"

	ActionCountersReconciled AuditAction = "counters_reconciled"
)

// actionSeverities maps each action to its default severity. Anything not
// listed defaults to low.
var actionSeverities = map[AuditAction]AuditSeverity{
	ActionCommunityDeleted:  SeverityCritical,
	ActionCommunityArchived: SeverityHigh,

	ActionOwnershipTransferred:      SeverityCritical,
	ActionSpaceOwnershipTransferred: SeverityHigh,

	ActionMemberBanned:        SeverityHigh,
	ActionMemberUnbanned:      SeverityHigh,
	ActionMemberKicked:        SeverityHigh,
	ActionMemberSuspended:     SeverityHigh,
	ActionSpaceMemberBanned:   SeverityHigh,
	ActionSpaceMemberUnbanned: SeverityHigh,
	ActionSpaceMemberKicked:   SeverityHigh,

	ActionMemberRoleChanged:      SeverityMedium,
	ActionSpaceMemberRoleChanged: SeverityMedium,
	ActionMemberUnsuspended:      SeverityMedium,
	ActionMemberMuted:            SeverityMedium,
	ActionMemberWarned:           SeverityMedium,
	ActionPermissionGranted:      SeverityMedium,
	ActionPermissionDenied:       SeverityMedium,
	ActionPermissionsCleared:     SeverityMedium,
	ActionSpaceDeleted:           SeverityMedium,
	ActionInviteRevoked:          SeverityMedium,
	ActionCommunityUpdated:       SeverityMedium,

	ActionCommunitySettingsUpdated: SeverityMedium,
}

// DefaultSeverity returns the severity an action is recorded with.
func (a AuditAction) DefaultSeverity() AuditSeverity {
	if sev, ok := actionSeverities[a]; ok {
		return sev
	}
	return SeverityLow
}

// AuditEntry is used to create new audit log entries. The zero Severity is
// filled from the action's default when the entry is recorded.
type AuditEntry struct {
	CommunityID string
	Action      AuditAction
	Severity    AuditSeverity
	ActorID     string
	TargetID    string
	TargetType  string
	Description string
	Changes     map[string]any
	Data        map[string]any
	IPAddress   string
	UserAgent   string
	RequestID   string
}

// ToModel converts an AuditEntry to an AuditLogEntry model.
func (e *AuditEntry) ToModel() *AuditLogEntry {
	severity := e.Severity
	if severity == "" {
		severity = e.Action.DefaultSeverity()
	}
	return &AuditLogEntry{
		CommunityID: e.CommunityID,
		Action:      e.Action,
		Severity:    severity,
		ActorID:     e.ActorID,
		TargetID:    e.TargetID,
		TargetType:  e.TargetType,
		Description: e.Description,
		Changes:     e.Changes,
		Data:        e.Data,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		RequestID:   e.RequestID,
		CreatedAt:   time.Now(),
	}
}
