package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

const (
	OutboxRetentionJobName = "outbox-retention"

	defaultEventWindow      = 30 * 24 * time.Hour
	defaultDeadLetterWindow = 90 * 24 * time.Hour
	defaultParkedAttempts   = 10
)

// OutboxRetentionJobParams configures pruning of review event rows. Zero
// windows fall back to thirty days for events and ninety for dead letters.
type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Events           reviewEventPruner
	DeadLetters      deadLetterPruner
	EventWindow      time.Duration
	DeadLetterWindow time.Duration
	ParkedAttempts   int
}

type reviewEventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes delivered and parked review events, then dead
// letters older than their own longer window. DeadLetters is optional.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("review event pruner required")
	}
	job := &outboxRetentionJob{
		logg:             params.Logger,
		db:               params.DB,
		events:           params.Events,
		deadLetters:      params.DeadLetters,
		eventWindow:      orDefault(params.EventWindow, defaultEventWindow),
		deadLetterWindow: orDefault(params.DeadLetterWindow, defaultDeadLetterWindow),
		parkedAttempts:   params.ParkedAttempts,
		now:              time.Now,
	}
	if job.parkedAttempts <= 0 {
		job.parkedAttempts = defaultParkedAttempts
	}
	if job.deadLetterWindow < job.eventWindow {
		job.deadLetterWindow = job.eventWindow
	}
	return job, nil
}

func orDefault(window, fallback time.Duration) time.Duration {
	if window <= 0 {
		return fallback
	}
	return window
}

type outboxRetentionJob struct {
	logg             *logger.Logger
	db               txRunner
	events           reviewEventPruner
	deadLetters      deadLetterPruner
	eventWindow      time.Duration
	deadLetterWindow time.Duration
	parkedAttempts   int
	now              func() time.Time
}

func (j *outboxRetentionJob) Name() string { return OutboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) (Result, error) {
	now := j.now().UTC()
	eventCutoff := now.Add(-j.eventWindow)
	deadLetterCutoff := now.Add(-j.deadLetterWindow)

	var events, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.events.DeletePublishedBefore(ctx, tx, eventCutoff, j.parkedAttempts); err != nil {
			return fmt.Errorf("review events: %w", err)
		}
		if j.deadLetters == nil {
			return nil
		}
		if deadLetters, err = j.deadLetters.DeleteFailedBefore(ctx, tx, deadLetterCutoff); err != nil {
			return fmt.Errorf("dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("outbox retention: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"event_cutoff":         eventCutoff,
		"dead_letter_cutoff":   deadLetterCutoff,
		"parked_attempts":      j.parkedAttempts,
		"events_deleted":       events,
		"dead_letters_deleted": deadLetters,
	})
	j.logg.Info(logCtx, "cron.outbox_retention.pruned")
	return Result{Rows: events + deadLetters}, nil
}
