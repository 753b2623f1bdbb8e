// Package memberkit provides an access control and membership lifecycle engine
// for multi-tenant community platforms.
//
// MemberKit models two nested scopes, communities and the spaces inside them,
// with a fixed, ordered role hierarchy, per-member permission overrides, invite
// and join-request workflows, aggregate counters, and a mandatory audit trail
// that is written in the same transaction as the state change it documents.
//
// # Core Concepts
//
// Community: the top-level tenant. Carries a visibility (public, private,
// secret), a join policy (open, approval_required, invite_only), and exactly one
// OWNER membership while it is active.
//
// Space: a sub-scope inside a community with its own membership, interaction
// mode (post, chat, forum, feed) and member cap. A space membership always
// requires an active membership in the parent community.
//
// Role hierarchy: a total order, OWNER > ADMIN > MODERATOR > MEMBER >
// RESTRICTED. Promotion is only allowed to a rank strictly below the acting
// member's own; OWNER moves only through the dedicated ownership-transfer
// operations.
//
// Permission resolution: effective permissions come from the role's default set,
// overridden by per-member grants and denials. Denials always win, with a single
// hard-coded exception: an OWNER's right to delete the community is irrevocable.
//
// # Basic Usage
//
//	db, err := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	service := memberkit.NewService(db,
//	    memberkit.WithUserDirectory(directory),
//	    memberkit.WithEventEmitter(emitter),
//	)
//
//	// Run migrations once at startup.
//	if _, err := db.Migrate(ctx, memberkit.NewMigrationService(service).Migrations()); err != nil {
//	    log.Fatal(err)
//	}
//
//	// The creator becomes the community OWNER in the same transaction.
//	ctx = memberkit.WithActorID(ctx, "user-1")
//	community, err := service.CreateCommunity(ctx, memberkit.CreateCommunityParams{
//	    Name: "Gophers", Slug: "gophers",
//	    Visibility: memberkit.VisibilityPublic,
//	    JoinPolicy: memberkit.JoinPolicyOpen,
//	})
//
//	// Other users join, moderators moderate, everything is audited.
//	_, err = service.Join(ctx2, community.ID, "user-2")
//	err = service.Ban(ctx, community.ID, "user-2", "spam")
//
// # Workflows
//
// Invite-only communities hand out invites (email-bound or plain links) that
// create memberships on acceptance. Approval-required communities run a
// request/approve/reject/cancel cycle. Both funnel into the same join primitive
// so counters, uniqueness and audit behave identically regardless of how a
// member arrived.
//
// # Atomicity
//
// Every mutating operation executes its uniqueness check, row write, counter
// update and audit append as one transaction. Concurrent joins for the same
// (scope, user) pair resolve to exactly one success; the rest observe Conflict
// through the unique constraint, never a check-then-act race.
//
// # Audit Log
//
// Every privileged mutation appends an immutable audit entry carrying the
// action kind, severity, actor, target, a human description and structured
// before/after changes. Audit rows are never updated or deleted. If an audit
// append fails the committed mutation is kept and the failure is logged at
// Error level; the action is never silently lost and never blocked.
package memberkit
