package memberkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditTrailForMutations tests that membership mutations each leave one
// audit row with actor and request metadata
func TestAuditTrailForMutations(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)

	memberID := uniqueID("member")
	_, err := service.Join(actorCtx(memberID), community.ID, memberID)
	require.NoError(t, err)

	require.NoError(t, service.Ban(actorCtx(ownerID), community.ID, memberID, "spam"))

	banLogs, err := service.GetAuditLogs(context.Background(), NewAuditLogFilter().
		WithCommunity(community.ID).
		WithAction(ActionMemberBanned))
	require.NoError(t, err)
	require.Len(t, banLogs, 1)

	entry := banLogs[0]
	assert.Equal(t, ownerID, entry.ActorID)
	assert.Equal(t, memberID, entry.TargetID)
	assert.Equal(t, SeverityHigh, entry.Severity)
	assert.Equal(t, "203.0.113.9", entry.IPAddress)
	assert.Equal(t, "memberkit-test/1.0", entry.UserAgent)

	joinLogs, err := service.GetAuditLogs(context.Background(), NewAuditLogFilter().
		WithCommunity(community.ID).
		WithAction(ActionMemberJoined))
	require.NoError(t, err)
	// Founder membership plus the direct join
	assert.Len(t, joinLogs, 2)
}

// TestRoleChangeAuditCarriesBeforeAfter tests the changes payload of a role
// update
func TestRoleChangeAuditCarriesBeforeAfter(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleAdmin)

	logs, err := service.GetAuditLogs(context.Background(), NewAuditLogFilter().
		WithCommunity(community.ID).
		WithAction(ActionMemberRoleChanged).
		WithTarget(memberID))
	require.NoError(t, err)
	require.Len(t, logs, 1)

	changes := logs[0].Changes
	require.NotNil(t, changes)
	assert.Equal(t, string(RoleMember), changes["before"])
	assert.Equal(t, string(RoleAdmin), changes["after"])
}

// TestGetSecurityEvents tests that the security view only surfaces high and
// critical entries
func TestGetSecurityEvents(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)

	// Low severity noise
	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)
	otherID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)

	// High severity signal
	require.NoError(t, service.Ban(actorCtx(ownerID), community.ID, memberID, "spam"))
	require.NoError(t, service.Remove(actorCtx(ownerID), community.ID, otherID, "spam"))

	events, err := service.GetSecurityEvents(context.Background(), community.ID, time.Hour, 50, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Contains(t, []AuditSeverity{SeverityHigh, SeverityCritical}, event.Severity)
	}

	// Outside the window nothing shows
	past, err := service.GetSecurityEvents(context.Background(), community.ID, time.Nanosecond, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, past)
}

// TestReconcileCounters tests drift detection and repair
func TestReconcileCounters(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	addMemberWithRole(t, service, community.ID, ownerID, RoleMember)

	// Skew the stored counter behind the service's back
	_, err := service.db.NewUpdate().Table("communities").
		Set("member_count = ?", 42).
		Where("id = ?", community.ID).
		Exec(context.Background())
	require.NoError(t, err)

	drifts, err := service.ReconcileCounters(context.Background())
	require.NoError(t, err)

	var found bool
	for _, drift := range drifts {
		if drift.ScopeID == community.ID && drift.Counter == "member_count" {
			found = true
			assert.Equal(t, int64(42), drift.Stored)
			assert.Equal(t, int64(2), drift.Actual)
		}
	}
	require.True(t, found, "expected a drift report for the skewed community")

	reloaded, err := service.GetCommunity(context.Background(), community.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.MemberCount)

	logs, err := service.GetAuditLogs(context.Background(), NewAuditLogFilter().
		WithCommunity(community.ID).
		WithAction(ActionCountersReconciled))
	require.NoError(t, err)
	assert.NotEmpty(t, logs)

	// A clean community reports no drift on the next run
	again, err := service.ReconcileCounters(context.Background())
	require.NoError(t, err)
	for _, drift := range again {
		assert.NotEqual(t, community.ID, drift.ScopeID)
	}
}
