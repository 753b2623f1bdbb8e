package memberkit

import (
	"time"

	"github.com/uptrace/bun"
)

// ScopeType distinguishes the two nested membership scopes.
type ScopeType string

const (
	ScopeCommunity ScopeType = "community"
	ScopeSpace     ScopeType = "space"
)

// Visibility controls who can discover and see a community or space.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilitySecret  Visibility = "secret"
)

// Valid reports whether v is a known visibility level.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate || v == VisibilitySecret
}

// JoinPolicy controls how new members enter a community.
type JoinPolicy string

const (
	JoinPolicyOpen             JoinPolicy = "open"
	JoinPolicyApprovalRequired JoinPolicy = "approval_required"
	JoinPolicyInviteOnly       JoinPolicy = "invite_only"
)

// Valid reports whether p is a known join policy.
func (p JoinPolicy) Valid() bool {
	return p == JoinPolicyOpen || p == JoinPolicyApprovalRequired || p == JoinPolicyInviteOnly
}

// EntityStatus is the lifecycle status shared by communities and spaces.
type EntityStatus string

const (
	StatusActive    EntityStatus = "active"
	StatusInactive  EntityStatus = "inactive"
	StatusSuspended EntityStatus = "suspended"
	StatusArchived  EntityStatus = "archived"
)

// SpaceMode is the interaction style of a space.
type SpaceMode string

const (
	SpaceModePost  SpaceMode = "post"
	SpaceModeChat  SpaceMode = "chat"
	SpaceModeForum SpaceMode = "forum"
	SpaceModeFeed  SpaceMode = "feed"
)

// Valid reports whether m is a known space mode.
func (m SpaceMode) Valid() bool {
	return m == SpaceModePost || m == SpaceModeChat || m == SpaceModeForum || m == SpaceModeFeed
}

// MembershipStatus is the lifecycle state of a (scope, user) relation.
// Rows are terminated by status change, not deletion, to preserve audit
// linkage.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipPending   MembershipStatus = "pending"
	MembershipBanned    MembershipStatus = "banned"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipLeft      MembershipStatus = "left"
	MembershipKicked    MembershipStatus = "kicked"
)

// JoinMethod records how a membership came to exist.
type JoinMethod string

const (
	JoinMethodDirect            JoinMethod = "direct"
	JoinMethodFounder           JoinMethod = "founder"
	JoinMethodInvite            JoinMethod = "invite"
	JoinMethodRequestApproved   JoinMethod = "join_request_approved"
	JoinMethodOwnershipTransfer JoinMethod = "ownership_transfer"
)

// InviteKind distinguishes email-bound invites from shareable links.
type InviteKind string

const (
	InviteEmail InviteKind = "email"
	InviteLink  InviteKind = "link"
)

// JoinRequestStatus is the lifecycle state of a join request. Every state
// except pending is terminal.
type JoinRequestStatus string

const (
	JoinRequestPending   JoinRequestStatus = "pending"
	JoinRequestApproved  JoinRequestStatus = "approved"
	JoinRequestRejected  JoinRequestStatus = "rejected"
	JoinRequestCancelled JoinRequestStatus = "cancelled"
)

// CommunitySettings is the closed set of per-community knobs. Stored as a
// single jsonb column; unknown keys never accumulate because the type is
// structured rather than a free-form map.
type CommunitySettings struct {
	AllowMemberInvites  bool `json:"allow_member_invites"`
	RequirePostApproval bool `json:"require_post_approval"`
	SlowModeSeconds     int  `json:"slow_mode_seconds"`
	MaxWarnings         int  `json:"max_warnings"`
}

// DefaultCommunitySettings returns the settings applied when none are given.
func DefaultCommunitySettings() CommunitySettings {
	return CommunitySettings{
		AllowMemberInvites: true,
		MaxWarnings:        3,
	}
}

// Community is the top-level tenant entity.
type Community struct {
	bun.BaseModel `bun:"table:communities,alias:c"`

	ID          string       `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name        string       `bun:"name,notnull"`
	Slug        string       `bun:"slug,notnull,unique"`
	Description string       `bun:"description"`
	Visibility  Visibility   `bun:"visibility,notnull"`
	JoinPolicy  JoinPolicy   `bun:"join_policy,notnull"`
	Status      EntityStatus `bun:"status,notnull,default:'active'"`
	OwnerID     string       `bun:"owner_id,notnull"`

	// Advisory counters, maintained atomically alongside membership and
	// space changes, reconciled periodically from the truth tables.
	MemberCount  int64 `bun:"member_count,notnull,default:0"`
	SpaceCount   int64 `bun:"space_count,notnull,default:0"`
	MessageCount int64 `bun:"message_count,notnull,default:0"`

	Settings CommunitySettings `bun:"settings,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
	DeletedAt time.Time `bun:"deleted_at,nullzero"`
}

// IsActive reports whether the community accepts normal operations.
func (c *Community) IsActive() bool {
	return c.Status == StatusActive && c.DeletedAt.IsZero()
}

// RequiresApproval reports whether joining goes through the join-request
// workflow. Secret communities always require approval regardless of policy.
func (c *Community) RequiresApproval() bool {
	return c.JoinPolicy == JoinPolicyApprovalRequired || c.Visibility == VisibilitySecret
}

// Space is a sub-scope inside a community with its own membership.
type Space struct {
	bun.BaseModel `bun:"table:spaces,alias:s"`

	ID          string       `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	CommunityID string       `bun:"community_id,notnull,type:uuid"`
	Name        string       `bun:"name,notnull"`
	Description string       `bun:"description"`
	Visibility  Visibility   `bun:"visibility,notnull"`
	Mode        SpaceMode    `bun:"mode,notnull"`
	Status      EntityStatus `bun:"status,notnull,default:'active'"`
	OwnerID     string       `bun:"owner_id,notnull"`

	MemberCount  int64 `bun:"member_count,notnull,default:0"`
	MessageCount int64 `bun:"message_count,notnull,default:0"`

	// MaxMembers caps the member count; zero means unlimited.
	MaxMembers int64 `bun:"max_members,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
	DeletedAt time.Time `bun:"deleted_at,nullzero"`
}

// IsActive reports whether the space accepts normal operations.
func (s *Space) IsActive() bool {
	return s.Status == StatusActive && s.DeletedAt.IsZero()
}

// CanAcceptMembers checks the join gate: the space must be active, not
// archived, and below its member cap.
func (s *Space) CanAcceptMembers() error {
	if !s.IsActive() {
		return NewError(ErrInvalidState, "space is not accepting members").
			WithScope(ScopeSpace, s.ID)
	}
	if s.MaxMembers > 0 && s.MemberCount >= s.MaxMembers {
		return NewError(ErrInvalidState, "space is full").
			WithScope(ScopeSpace, s.ID)
	}
	return nil
}

// Membership is a (scope, user) relation carrying role, status and per-member
// permission overrides. Community-scoped and space-scoped memberships share
// this shape, distinguished by ScopeType.
type Membership struct {
	bun.BaseModel `bun:"table:memberships,alias:m"`

	ID        string           `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ScopeType ScopeType        `bun:"scope_type,notnull"`
	ScopeID   string           `bun:"scope_id,notnull,type:uuid"`
	UserID    string           `bun:"user_id,notnull"`
	Role      Role             `bun:"role,notnull"`
	Status    MembershipStatus `bun:"status,notnull"`

	// Per-member overrides of the role's default permission set.
	Grants  []Permission `bun:"grants,array"`
	Denials []Permission `bun:"denials,array"`

	JoinedAt   time.Time  `bun:"joined_at,notnull,default:current_timestamp"`
	LeftAt     time.Time  `bun:"left_at,nullzero"`
	InvitedBy  string     `bun:"invited_by"`
	JoinMethod JoinMethod `bun:"join_method,notnull"`

	MutedUntil   time.Time `bun:"muted_until,nullzero"`
	WarningCount int       `bun:"warning_count,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// IsActive reports whether the membership currently grants access.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive
}

// IsMuted reports whether the member is muted at the given instant.
func (m *Membership) IsMuted(now time.Time) bool {
	return !m.MutedUntil.IsZero() && now.Before(m.MutedUntil)
}

// HasPermission resolves a single permission against the member's role and
// overrides. Non-active memberships never resolve to true.
func (m *Membership) HasPermission(p Permission) bool {
	if !m.IsActive() {
		return false
	}
	return Resolve(m.Role, m.Grants, m.Denials, p)
}

// Invite is a redeemable token granting community membership.
type Invite struct {
	bun.BaseModel `bun:"table:invites,alias:i"`

	ID          string     `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	CommunityID string     `bun:"community_id,notnull,type:uuid"`
	Kind        InviteKind `bun:"kind,notnull"`
	Email       string     `bun:"email"`
	Code        string     `bun:"code,notnull,unique"`
	Message     string     `bun:"message"`
	CreatedBy   string     `bun:"created_by,notnull"`

	ExpiresAt  time.Time `bun:"expires_at,nullzero"`
	UsedAt     time.Time `bun:"used_at,nullzero"`
	UsedBy     string    `bun:"used_by"`
	DeclinedAt time.Time `bun:"declined_at,nullzero"`
	Active     bool      `bun:"active,notnull,default:true"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// IsExpired reports whether the invite's expiry has passed.
func (i *Invite) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Redeemable checks every condition for acceptance except the email match.
func (i *Invite) Redeemable(now time.Time) error {
	if !i.Active {
		return NewError(ErrInvalidState, "invite has been revoked or declined").
			WithScope(ScopeCommunity, i.CommunityID)
	}
	if !i.UsedAt.IsZero() {
		return NewError(ErrInvalidState, "invite has already been used").
			WithScope(ScopeCommunity, i.CommunityID)
	}
	if i.IsExpired(now) {
		return NewError(ErrInvalidState, "invite has expired").
			WithScope(ScopeCommunity, i.CommunityID)
	}
	return nil
}

// JoinRequest is an approval-gated membership application.
type JoinRequest struct {
	bun.BaseModel `bun:"table:join_requests,alias:jr"`

	ID          string            `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	CommunityID string            `bun:"community_id,notnull,type:uuid"`
	UserID      string            `bun:"user_id,notnull"`
	Message     string            `bun:"message"`
	Status      JoinRequestStatus `bun:"status,notnull,default:'pending'"`

	Response    string    `bun:"response"`
	ProcessedBy string    `bun:"processed_by"`
	ProcessedAt time.Time `bun:"processed_at,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// CanBeProcessed reports whether the request is still open for a decision.
func (r *JoinRequest) CanBeProcessed() bool {
	return r.Status == JoinRequestPending
}

// AuditLogEntry is an immutable record of a privileged action. Entries are
// created once and never updated or deleted through normal flow.
type AuditLogEntry struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID          string        `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	CommunityID string        `bun:"community_id,notnull,type:uuid"`
	Action      AuditAction   `bun:"action,notnull"`
	Severity    AuditSeverity `bun:"severity,notnull"`

	// ActorID is empty for system-triggered actions such as counter
	// reconciliation.
	ActorID    string `bun:"actor_id"`
	TargetID   string `bun:"target_id"`
	TargetType string `bun:"target_type"`

	Description string         `bun:"description,notnull"`
	Changes     map[string]any `bun:"changes,type:jsonb"`
	Data        map[string]any `bun:"data,type:jsonb"`

	// Request metadata for forensics, taken from context when present.
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
