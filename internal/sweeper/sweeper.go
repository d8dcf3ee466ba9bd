// Package sweeper resolves interactions that have waited too long for a human
// reviewer. Expiry is policy layered on top of the state machine, not part of
// it: an expired record is closed with an ordinary reviewer decision
// attributed to the system, so the transition rules and audit trail are the
// same as for any other review.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/config"
	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/lifecycle"
	"github.com/omniguard/go-moderation-backend/internal/repo"
)

// SystemReviewer is the reviewer identity recorded on expiry decisions.
const SystemReviewer = "system-expiry"

// batchSize caps how many overdue records one sweep cycle resolves.
const batchSize = 200

var expiriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "moderation_review_expiries_total",
	Help: "Total pending reviews resolved by the dwell-time sweeper.",
})

func init() {
	prometheus.MustRegister(expiriesTotal)
}

// Resolver applies a reviewer decision to one interaction. Satisfied by
// services.ModerationService.
type Resolver interface {
	SubmitReview(ctx context.Context, id string, d lifecycle.Decision) (*domain.Interaction, error)
}

// Sweeper periodically resolves overdue pending reviews with a
// system-attributed decision.
type Sweeper struct {
	db  *gorm.DB
	svc Resolver
	cfg config.ReviewConfig

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// New returns a sweeper bound to the given store, resolver, and policy.
func New(db *gorm.DB, svc Resolver, cfg config.ReviewConfig) *Sweeper {
	return &Sweeper{db: db, svc: svc, cfg: cfg, cron: cron.New()}
}

// Start schedules sweeps per the configured cron expression. It returns an
// error when the expression does not parse; a disabled sweeper starts as a
// no-op. The sweeper stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.SweepEnabled {
		log.Info().Msg("review sweeper disabled")
		return nil
	}
	if _, err := cron.ParseStandard(s.cfg.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("review sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	log.Info().
		Str("schedule", s.cfg.SweepSchedule).
		Dur("max_dwell", s.cfg.MaxDwell).
		Str("expiry_action", s.cfg.ExpiryAction).
		Msg("review sweeper started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		log.Info().Msg("review sweeper stopped")
	}
}

// Sweep resolves every interaction parked longer than MaxDwell, oldest first,
// and returns how many were closed. Records reviewed between the query and
// the decision are skipped, not errors: the human won the race.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.MaxDwell)
	overdue, err := repo.OverdueReviews(ctx, s.db, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list overdue reviews: %w", err)
	}

	action, _ := domain.ParseAction(s.cfg.ExpiryAction)
	if !action.Valid() {
		action = domain.ActionEscalate
	}

	closed := 0
	for _, in := range overdue {
		_, err := s.svc.SubmitReview(ctx, in.ID, lifecycle.Decision{
			Compliant:  false,
			Action:     action,
			ReviewedBy: SystemReviewer,
			Notes:      fmt.Sprintf("review dwell time exceeded %s", s.cfg.MaxDwell),
		})
		if err != nil {
			log.Warn().Err(err).Str("interaction_id", in.ID).Msg("expiry decision not applied")
			continue
		}
		expiriesTotal.Inc()
		closed++
	}

	if closed > 0 {
		log.Info().Int("closed", closed).Time("cutoff", cutoff).Msg("review sweep completed")
	}
	return closed, nil
}
