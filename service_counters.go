package memberkit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// ============================================================================
// AGGREGATE COUNTERS
// ============================================================================
//
// member_count and space_count are maintained with atomic relative updates
// (SET x = x + delta) inside the same transaction as the membership change,
// never read-modify-write. ReconcileCounters recomputes them from the source
// tables and corrects drift.

// counted reports whether a membership status contributes to member_count.
// Terminated (left, kicked) and banned rows do not count.
func (st MembershipStatus) counted() bool {
	return st == MembershipActive || st == MembershipPending || st == MembershipSuspended
}

func (s *Service) bumpMemberCount(ctx context.Context, db dbkit.IDB, scopeType ScopeType, scopeID string, delta int) error {
	table := "communities"
	if scopeType == ScopeSpace {
		table = "spaces"
	}
	res, err := db.NewUpdate().Table(table).
		Set("member_count = member_count + ?", delta).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", scopeID).
		Exec(ctx)
	return dbkit.WithErr(res, err, "BumpMemberCount").Err()
}

func (s *Service) bumpSpaceCount(ctx context.Context, db dbkit.IDB, communityID string, delta int) error {
	res, err := db.NewUpdate().Table("communities").
		Set("space_count = space_count + ?", delta).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", communityID).
		Exec(ctx)
	return dbkit.WithErr(res, err, "BumpSpaceCount").Err()
}

func (s *Service) recountMembers(ctx context.Context, scopeType ScopeType, scopeID string) (int64, error) {
	count, err := dbkit.Count[Membership](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("scope_type = ? AND scope_id = ?", scopeType, scopeID).
			Where("status IN (?, ?, ?)", MembershipActive, MembershipPending, MembershipSuspended)
	})
	return int64(count), err
}

func (s *Service) recountSpaces(ctx context.Context, communityID string) (int64, error) {
	count, err := dbkit.Count[Space](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("community_id = ?", communityID).
			Where("deleted_at IS NULL")
	})
	return int64(count), err
}

// CounterDrift describes one corrected counter.
type CounterDrift struct {
	ScopeType ScopeType `json:"scope_type"`
	ScopeID   string    `json:"scope_id"`
	Counter   string    `json:"counter"`
	Stored    int64     `json:"stored"`
	Actual    int64     `json:"actual"`
}

// ReconcileCounters recomputes member and space counters for every non-deleted
// community (and its spaces) and fixes any drift. Corrections are logged and
// audited with a system actor. Returns the drifts that were corrected.
func (s *Service) ReconcileCounters(ctx context.Context) ([]CounterDrift, error) {
	var communities []Community
	err := dbkit.WithErr1(s.db.NewSelect().Model(&communities).
		Where("deleted_at IS NULL").
		Scan(ctx), "ReconcileCounters").Err()
	if err != nil {
		return nil, err
	}

	var drifts []CounterDrift
	for i := range communities {
		community := &communities[i]
		var local []CounterDrift

		members, err := s.recountMembers(ctx, ScopeCommunity, community.ID)
		if err != nil {
			return drifts, err
		}
		if members != community.MemberCount {
			local = append(local, CounterDrift{ScopeCommunity, community.ID, "member_count", community.MemberCount, members})
			if err := s.setCounter(ctx, "communities", community.ID, "member_count", members); err != nil {
				return drifts, err
			}
		}

		spaces, err := s.recountSpaces(ctx, community.ID)
		if err != nil {
			return drifts, err
		}
		if spaces != community.SpaceCount {
			local = append(local, CounterDrift{ScopeCommunity, community.ID, "space_count", community.SpaceCount, spaces})
			if err := s.setCounter(ctx, "communities", community.ID, "space_count", spaces); err != nil {
				return drifts, err
			}
		}

		var communitySpaces []Space
		err = dbkit.WithErr1(s.db.NewSelect().Model(&communitySpaces).
			Where("community_id = ?", community.ID).
			Where("deleted_at IS NULL").
			Scan(ctx), "ReconcileCounters").Err()
		if err != nil {
			return drifts, err
		}
		for j := range communitySpaces {
			space := &communitySpaces[j]
			members, err := s.recountMembers(ctx, ScopeSpace, space.ID)
			if err != nil {
				return drifts, err
			}
			if members != space.MemberCount {
				local = append(local, CounterDrift{ScopeSpace, space.ID, "member_count", space.MemberCount, members})
				if err := s.setCounter(ctx, "spaces", space.ID, "member_count", members); err != nil {
					return drifts, err
				}
			}
		}

		if len(local) > 0 {
			for _, d := range local {
				s.log.WithFields(map[string]interface{}{
					"scope_type": d.ScopeType,
					"scope_id":   d.ScopeID,
					"counter":    d.Counter,
					"stored":     d.Stored,
					"actual":     d.Actual,
				}).Warn("counter drift corrected")
			}
			s.recordAudit(ctx, s.db, &AuditEntry{
				CommunityID: community.ID,
				Action:      ActionCountersReconciled,
				Severity:    SeverityMedium,
				TargetID:    community.ID,
				TargetType:  "community",
				Description: "aggregate counters reconciled",
				Data: map[string]interface{}{
					"corrections":   len(local),
					"reconciled_at": time.Now().UTC().Format(time.RFC3339),
				},
			})
			drifts = append(drifts, local...)
		}
	}

	return drifts, nil
}

func (s *Service) setCounter(ctx context.Context, table, id, column string, value int64) error {
	res, err := s.db.NewUpdate().Table(table).
		Set(column+" = ?", value).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Exec(ctx)
	return dbkit.WithErr(res, err, "SetCounter").Err()
}
