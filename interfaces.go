package memberkit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// UserDirectory is the collaborator that owns user identities. MemberKit only
// needs existence and, for email-bound invites, the account email. Lookups are
// given a bounded timeout; a failed lookup fails the outer operation.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	UserEmail(ctx context.Context, userID string) (string, error)
}

// EventEmitter receives fire-and-forget domain events after a successful
// transaction. Emit errors never fail the originating operation.
type EventEmitter interface {
	Emit(ctx context.Context, event DomainEvent) error
}

// TransactionManager defines the transaction management interface
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() (*PoolConfig, error)
	OptimizeConnectionPool() error
	ResetConnectionPool() error
}

// AuditReader defines the audit log query surface.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, filter AuditLogFilter) ([]AuditLogEntry, error)
	GetSecurityEvents(ctx context.Context, communityID string, window time.Duration, limit, offset int) ([]AuditLogEntry, error)
}

// TransactionMonitor defines the transaction monitoring interface
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}

// CommunityMembershipManager is the community-scoped membership state machine.
type CommunityMembershipManager interface {
	Join(ctx context.Context, communityID, userID string) (*Membership, error)
	Leave(ctx context.Context, communityID, userID string) error
	Remove(ctx context.Context, communityID, userID, reason string) error
	UpdateRole(ctx context.Context, communityID, userID string, newRole Role) (*Membership, error)
	Ban(ctx context.Context, communityID, userID, reason string) error
	Unban(ctx context.Context, communityID, userID string) error
	TransferOwnership(ctx context.Context, communityID, newOwnerID string) error
	CheckPermission(ctx context.Context, communityID, userID string, required Role) (bool, error)
}

// SpaceMembershipManager is the space-scoped membership state machine.
type SpaceMembershipManager interface {
	JoinSpace(ctx context.Context, spaceID, userID string) (*Membership, error)
	AddSpaceMember(ctx context.Context, spaceID, userID string) (*Membership, error)
	LeaveSpace(ctx context.Context, spaceID, userID string) error
	RemoveSpaceMember(ctx context.Context, spaceID, userID, reason string) error
	UpdateSpaceRole(ctx context.Context, spaceID, userID string, newRole Role) (*Membership, error)
	BanSpaceMember(ctx context.Context, spaceID, userID, reason string) error
	UnbanSpaceMember(ctx context.Context, spaceID, userID string) error
	TransferSpaceOwnership(ctx context.Context, spaceID, newOwnerID string) error
}

// InviteManager is the invite workflow surface.
type InviteManager interface {
	CreateInvite(ctx context.Context, communityID string, params InviteParams) (*Invite, error)
	AcceptInvite(ctx context.Context, code, userID string) (*Membership, error)
	DeclineInvite(ctx context.Context, code, userID string) error
	RevokeInvite(ctx context.Context, inviteID string) error
}

// JoinRequestManager is the join-request workflow surface.
type JoinRequestManager interface {
	CreateJoinRequest(ctx context.Context, communityID, userID, message string) (*JoinRequest, error)
	ApproveJoinRequest(ctx context.Context, requestID, response string) (*Membership, error)
	RejectJoinRequest(ctx context.Context, requestID, response string) error
	CancelJoinRequest(ctx context.Context, requestID, userID string) error
}

// Compile-time checks that the service and its extensions satisfy the
// exported surfaces.
var (
	_ CommunityMembershipManager = (*Service)(nil)
	_ SpaceMembershipManager     = (*Service)(nil)
	_ InviteManager              = (*Service)(nil)
	_ JoinRequestManager         = (*Service)(nil)
	_ AuditReader                = (*Service)(nil)
	_ TransactionManager         = (*Service)(nil)
	_ TransactionMonitor         = (*Service)(nil)
	_ MigrationManager           = (*MigrationService)(nil)
	_ HealthMonitor              = (*HealthService)(nil)
	_ PoolManager                = (*PoolService)(nil)
)
