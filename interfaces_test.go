package memberkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestServiceSatisfiesManagerInterfaces tests that the service and its
// extensions expose the documented surfaces
func TestServiceSatisfiesManagerInterfaces(t *testing.T) {
	var service any = NewService(nil)

	_, ok := service.(CommunityMembershipManager)
	assert.True(t, ok, "Service should satisfy CommunityMembershipManager")

	_, ok = service.(SpaceMembershipManager)
	assert.True(t, ok, "Service should satisfy SpaceMembershipManager")

	_, ok = service.(InviteManager)
	assert.True(t, ok, "Service should satisfy InviteManager")

	_, ok = service.(JoinRequestManager)
	assert.True(t, ok, "Service should satisfy JoinRequestManager")

	_, ok = service.(AuditReader)
	assert.True(t, ok, "Service should satisfy AuditReader")

	_, ok = service.(TransactionManager)
	assert.True(t, ok, "Service should satisfy TransactionManager")

	_, ok = service.(TransactionMonitor)
	assert.True(t, ok, "Service should satisfy TransactionMonitor")

	var health any = NewHealthService(NewService(nil))
	_, ok = health.(HealthMonitor)
	assert.True(t, ok, "HealthService should satisfy HealthMonitor")

	var pool any = NewPoolService(NewService(nil))
	_, ok = pool.(PoolManager)
	assert.True(t, ok, "PoolService should satisfy PoolManager")

	var migrations any = NewMigrationService(NewService(nil))
	_, ok = migrations.(MigrationManager)
	assert.True(t, ok, "MigrationService should satisfy MigrationManager")
}
