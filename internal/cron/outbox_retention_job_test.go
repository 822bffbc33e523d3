package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var retentionNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func TestOutboxRetentionJobPrunesEventsAndDeadLetters(t *testing.T) {
	events := &fakeEventPruner{rows: 7}
	deadLetters := &fakeDeadLetterPruner{rows: 2}
	job := newRetentionJob(t, OutboxRetentionJobParams{
		Events:           events,
		DeadLetters:      deadLetters,
		EventWindow:      48 * time.Hour,
		DeadLetterWindow: 14 * 24 * time.Hour,
		ParkedAttempts:   5,
	})

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(9), result.Rows)
	require.Equal(t, retentionNow.Add(-48*time.Hour), events.cutoff)
	require.Equal(t, 5, events.attempts)
	require.Equal(t, retentionNow.Add(-14*24*time.Hour), deadLetters.cutoff)
}

func TestOutboxRetentionJobDefaults(t *testing.T) {
	events := &fakeEventPruner{}
	deadLetters := &fakeDeadLetterPruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Events: events, DeadLetters: deadLetters})

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, retentionNow.Add(-defaultEventWindow), events.cutoff)
	require.Equal(t, defaultParkedAttempts, events.attempts)
	require.Equal(t, retentionNow.Add(-defaultDeadLetterWindow), deadLetters.cutoff)
}

func TestOutboxRetentionJobKeepsDeadLettersAtLeastAsLongAsEvents(t *testing.T) {
	deadLetters := &fakeDeadLetterPruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{
		Events:           &fakeEventPruner{},
		DeadLetters:      deadLetters,
		EventWindow:      10 * 24 * time.Hour,
		DeadLetterWindow: 24 * time.Hour,
	})

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, retentionNow.Add(-10*24*time.Hour), deadLetters.cutoff)
}

func TestOutboxRetentionJobWithoutDeadLetterPruner(t *testing.T) {
	job := newRetentionJob(t, OutboxRetentionJobParams{Events: &fakeEventPruner{rows: 3}})

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), result.Rows)
}

func TestOutboxRetentionJobStopsOnEventFailure(t *testing.T) {
	deadLetters := &fakeDeadLetterPruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{
		Events:      &fakeEventPruner{err: errors.New("boom")},
		DeadLetters: deadLetters,
	})

	_, err := job.Run(context.Background())
	require.ErrorContains(t, err, "review events: boom")
	require.Zero(t, deadLetters.calls)
}

func TestOutboxRetentionJobReportsDeadLetterFailure(t *testing.T) {
	job := newRetentionJob(t, OutboxRetentionJobParams{
		Events:      &fakeEventPruner{rows: 1},
		DeadLetters: &fakeDeadLetterPruner{err: errors.New("locked")},
	})

	result, err := job.Run(context.Background())
	require.ErrorContains(t, err, "dead letters: locked")
	require.Zero(t, result.Rows)
}

func TestNewOutboxRetentionJobRequiresEvents(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: quietLogger(), DB: passthroughTx{}})
	require.Error(t, err)
}

func newRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = quietLogger()
	params.DB = passthroughTx{}
	created, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	job, ok := created.(*outboxRetentionJob)
	require.True(t, ok, "unexpected job type %T", created)
	job.now = func() time.Time { return retentionNow }
	return job
}

type fakeEventPruner struct {
	cutoff   time.Time
	attempts int
	rows     int64
	err      error
}

func (f *fakeEventPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.cutoff = cutoff
	f.attempts = minAttemptCount
	return f.rows, f.err
}

type fakeDeadLetterPruner struct {
	cutoff time.Time
	calls  int
	rows   int64
	err    error
}

func (f *fakeDeadLetterPruner) DeleteFailedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.rows, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
