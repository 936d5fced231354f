// Package maintenance runs the scheduled background cleanup jobs.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gfranca/barberhub/internal/auth/mfa"
	"github.com/gfranca/barberhub/pkg/logger"
)

const defaultChallengeSpec = "@hourly"

// Cleaner purges expired and consumed MFA challenge sessions on a schedule so
// the table holds only live codes.
type Cleaner struct {
	challenges *mfa.ChallengeService
	cron       *cron.Cron
	now        func() time.Time
	log        *zap.Logger

	challengeSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithChallengeSchedule overrides the cron specification for challenge cleanup.
func WithChallengeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.challengeSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil challenge
// service results in the job being skipped.
func NewCleaner(challenges *mfa.ChallengeService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		challenges:        challenges,
		now:               time.Now,
		challengeSchedule: defaultChallengeSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.challenges == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.challengeSchedule, func() {
		ctx := context.Background()
		if _, err := c.challenges.PurgeDead(ctx); err != nil {
			c.log.Warn("challenge cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used
// in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.challenges != nil {
		if _, err := c.challenges.PurgeDead(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
