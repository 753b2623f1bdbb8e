package memberkit

import (
	"github.com/fernandezvara/dbkit"
)

// MigrationService provides migration management functionality as an extension to Service
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// Migrations returns all database migrations required for MemberKit.
// Use dbkit.Migrate(ctx, service.Migrations()) to run migrations.
// Use dbkit.MigrationStatus(ctx, service.Migrations()) to check status.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "memberkit-001",
			Description: "Create communities table",
			SQL: `
                CREATE TABLE IF NOT EXISTS communities (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT NOT NULL,
                    slug TEXT NOT NULL UNIQUE,
                    description TEXT NOT NULL DEFAULT '',
                    visibility TEXT NOT NULL,
                    join_policy TEXT NOT NULL,
                    status TEXT NOT NULL DEFAULT 'active',
                    owner_id TEXT NOT NULL,
                    member_count BIGINT NOT NULL DEFAULT 0,
                    space_count BIGINT NOT NULL DEFAULT 0,
                    message_count BIGINT NOT NULL DEFAULT 0,
                    settings JSONB NOT NULL DEFAULT '{}',
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    deleted_at TIMESTAMPTZ
                )`,
		},
		{
			ID:          "memberkit-002",
			Description: "Create spaces table",
			SQL: `
                CREATE TABLE IF NOT EXISTS spaces (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    community_id UUID NOT NULL REFERENCES communities(id),
                    name TEXT NOT NULL,
                    description TEXT NOT NULL DEFAULT '',
                    visibility TEXT NOT NULL,
                    mode TEXT NOT NULL,
                    status TEXT NOT NULL DEFAULT 'active',
                    owner_id TEXT NOT NULL,
                    member_count BIGINT NOT NULL DEFAULT 0,
                    message_count BIGINT NOT NULL DEFAULT 0,
                    max_members BIGINT NOT NULL DEFAULT 0,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    deleted_at TIMESTAMPTZ,
                    UNIQUE (community_id, name)
                )`,
		},
		{
			ID:          "memberkit-003",
			Description: "Create memberships table",
			SQL: `
                CREATE TABLE IF NOT EXISTS memberships (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    scope_type TEXT NOT NULL,
                    scope_id UUID NOT NULL,
                    user_id TEXT NOT NULL,
                    role TEXT NOT NULL,
                    status TEXT NOT NULL,
                    grants TEXT[] NOT NULL DEFAULT '{}',
                    denials TEXT[] NOT NULL DEFAULT '{}',
                    joined_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    left_at TIMESTAMPTZ,
                    invited_by TEXT NOT NULL DEFAULT '',
                    join_method TEXT NOT NULL,
                    muted_until TIMESTAMPTZ,
                    warning_count INTEGER NOT NULL DEFAULT 0,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (scope_type, scope_id, user_id)
                )`,
		},
		{
			ID:          "memberkit-004",
			Description: "Create invites table",
			SQL: `
                CREATE TABLE IF NOT EXISTS invites (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    community_id UUID NOT NULL REFERENCES communities(id),
                    kind TEXT NOT NULL,
                    email TEXT NOT NULL DEFAULT '',
                    code TEXT NOT NULL UNIQUE,
                    message TEXT NOT NULL DEFAULT '',
                    created_by TEXT NOT NULL,
                    expires_at TIMESTAMPTZ,
                    used_at TIMESTAMPTZ,
                    used_by TEXT NOT NULL DEFAULT '',
                    declined_at TIMESTAMPTZ,
                    active BOOLEAN NOT NULL DEFAULT TRUE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "memberkit-005",
			Description: "Create join_requests table",
			SQL: `
                CREATE TABLE IF NOT EXISTS join_requests (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    community_id UUID NOT NULL REFERENCES communities(id),
                    user_id TEXT NOT NULL,
                    message TEXT NOT NULL DEFAULT '',
                    status TEXT NOT NULL DEFAULT 'pending',
                    response TEXT NOT NULL DEFAULT '',
                    processed_by TEXT NOT NULL DEFAULT '',
                    processed_at TIMESTAMPTZ,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE UNIQUE INDEX IF NOT EXISTS join_requests_pending_unique
                    ON join_requests (community_id, user_id)
                    WHERE status = 'pending'`,
		},
		{
			ID:          "memberkit-006",
			Description: "Create audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS audit_log (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    community_id UUID NOT NULL,
                    action TEXT NOT NULL,
                    severity TEXT NOT NULL,
                    actor_id TEXT NOT NULL DEFAULT '',
                    target_id TEXT NOT NULL DEFAULT '',
                    target_type TEXT NOT NULL DEFAULT '',
                    description TEXT NOT NULL,
                    changes JSONB,
                    data JSONB,
                    ip_address TEXT NOT NULL DEFAULT '',
                    user_agent TEXT NOT NULL DEFAULT '',
                    request_id TEXT NOT NULL DEFAULT '',
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "memberkit-007",
			Description: "Create lookup indexes",
			SQL: `
                CREATE INDEX IF NOT EXISTS memberships_scope_status_idx
                    ON memberships (scope_type, scope_id, status);
                CREATE INDEX IF NOT EXISTS memberships_user_idx
                    ON memberships (user_id);
                CREATE INDEX IF NOT EXISTS spaces_community_idx
                    ON spaces (community_id);
                CREATE INDEX IF NOT EXISTS invites_community_idx
                    ON invites (community_id);
                CREATE INDEX IF NOT EXISTS audit_log_community_created_idx
                    ON audit_log (community_id, created_at DESC);
                CREATE INDEX IF NOT EXISTS audit_log_actor_idx
                    ON audit_log (actor_id)`,
		},
	}
}
