package memberkit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reconciler runs ReconcileCounters on a cron schedule, correcting counter
// drift in the background. Each run is bounded by a timeout so a slow
// reconciliation cannot pile up behind the next one.
type Reconciler struct {
	service  *Service
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	log      *logrus.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcileSchedule overrides the cron schedule. Default is hourly.
func WithReconcileSchedule(spec string) ReconcilerOption {
	return func(r *Reconciler) { r.schedule = spec }
}

// WithReconcileTimeout bounds a single reconciliation run. Default 5 minutes.
func WithReconcileTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.timeout = d }
}

// NewReconciler creates a background counter reconciler for the service.
//
// Example:
//
//	rec := memberkit.NewReconciler(service, memberkit.WithReconcileSchedule("@every 30m"))
//	rec.Start()
//	defer rec.Stop()
func NewReconciler(service *Service, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		service:  service,
		cron:     cron.New(),
		schedule: "@hourly",
		timeout:  5 * time.Minute,
		log:      service.log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start schedules the reconciliation job and starts the cron runner.
func (r *Reconciler) Start() error {
	_, err := r.cron.AddFunc(r.schedule, r.run)
	if err != nil {
		return err
	}
	r.cron.Start()
	r.log.WithField("schedule", r.schedule).Info("counter reconciler started")
	return nil
}

// Stop stops the cron runner and waits for a running job to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("counter reconciler stopped")
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	started := time.Now()
	drifts, err := r.service.ReconcileCounters(ctx)
	if err != nil {
		r.log.WithError(err).Error("counter reconciliation failed")
		return
	}
	r.log.WithFields(logrus.Fields{
		"corrections": len(drifts),
		"elapsed":     time.Since(started),
	}).Info("counter reconciliation completed")
}
