package memberkit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/sirupsen/logrus"
)

// defaultDirectoryTimeout bounds collaborator lookups so a stalled user
// directory fails the operation instead of hanging it.
const defaultDirectoryTimeout = 3 * time.Second

// Service is the membership lifecycle engine. It owns community and space
// memberships, the invite and join-request workflows, the aggregate counters
// and the audit trail, all persisted through dbkit.
//
// Error Handling:
// All business-rule violations come back as typed errors (NotFound, Conflict,
// Forbidden, InvalidState, Validation) that wrap context about the scope, user
// and actor involved. Database operations use dbkit's chainable error wrapping.
//
// Example error handling:
//
//	_, err := service.Join(ctx, communityID, userID)
//	if err != nil {
//	    switch {
//	    case memberkit.IsConflict(err):
//	        // already a member
//	    case memberkit.IsForbidden(err):
//	        // banned, or community policy disallows direct joins
//	    case memberkit.IsNotFound(err):
//	        // community or user missing
//	    }
//	}
type Service struct {
	db               dbkit.IDB
	directory        UserDirectory
	emitter          EventEmitter
	log              *logrus.Logger
	txMonitor        *transactionMonitor
	directoryTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithUserDirectory sets the collaborator that answers user-existence and
// user-email lookups. Without one, MemberKit trusts the caller to pass valid
// user IDs and email-bound invites cannot be redeemed.
func WithUserDirectory(d UserDirectory) Option {
	return func(s *Service) { s.directory = d }
}

// WithEventEmitter sets the outbound domain-event sink.
func WithEventEmitter(e EventEmitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithLogger sets the logger used for the audit-failure alarm path and the
// counter reconciler.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithDirectoryTimeout overrides the bounded timeout applied to user
// directory lookups.
func WithDirectoryTimeout(d time.Duration) Option {
	return func(s *Service) { s.directoryTimeout = d }
}

// NewService creates a new MemberKit service.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := memberkit.NewService(db,
//	    memberkit.WithUserDirectory(directory),
//	    memberkit.WithEventEmitter(memberkit.NewKafkaEmitter(kafkaCfg)),
//	)
func NewService(db dbkit.IDB, opts ...Option) *Service {
	s := &Service{
		db:               db,
		emitter:          NopEmitter{},
		log:              logrus.New(),
		txMonitor:        newTransactionMonitor(),
		directoryTimeout: defaultDirectoryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireActor extracts the acting user from context. Every privileged
// mutation needs one for authorization and audit.
func (s *Service) requireActor(ctx context.Context) (string, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return "", NewError(ErrNoActorID, "actor ID required")
	}
	return actorID, nil
}

// requireUserExists consults the user directory with a bounded timeout.
// Directory errors fail the outer operation rather than letting it hang or
// proceed on an unverified user.
func (s *Service) requireUserExists(ctx context.Context, userID string) error {
	if userID == "" {
		return NewError(ErrValidation, "user ID cannot be empty")
	}
	if s.directory == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()
	exists, err := s.directory.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("memberkit: user directory lookup: %w", err)
	}
	if !exists {
		return NewError(ErrNotFound, "user not found").WithUser(userID)
	}
	return nil
}

// emit publishes a domain event after a successful transaction. Emission is
// fire-and-forget: failures are logged at Warn and never propagate.
func (s *Service) emit(ctx context.Context, name, communityID string, payload map[string]any) {
	if s.emitter == nil {
		return
	}
	event := newDomainEvent(name, communityID, payload)
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":        name,
			"community_id": communityID,
		}).Warn("domain event emission failed")
	}
}
