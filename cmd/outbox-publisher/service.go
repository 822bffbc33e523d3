package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/metrics"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
	DeadLetterPublisher() *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	PubSub        pubSubClient
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.OutboxMetrics
	// Topics and DeadLetter default to publishers from PubSub.
	Topics     publisherFactory
	DeadLetter publisher
}

// Service drains outbox_events onto Pub/Sub. Every row in a batch ends as
// published, scheduled for another attempt, or dead-lettered, inside the
// transaction that locked it.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	metrics      *metrics.OutboxMetrics
	topics       publisherFactory
	deadLetter   publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	topics := params.Topics
	if topics == nil {
		topics = func(topic string) publisher { return wrapPublisher(params.PubSub.Publisher(topic)) }
	}
	deadLetter := params.DeadLetter
	if deadLetter == nil {
		deadLetter = wrapPublisher(params.PubSub.DeadLetterPublisher())
	}

	cfg := params.Config.Outbox
	s := &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		topics:       topics,
		deadLetter:   deadLetter,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	if cfg.BatchSize > 0 {
		s.batchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		s.maxAttempts = cfg.MaxAttempts
	}
	if cfg.PollIntervalMS > 0 {
		s.pollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return s, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next one; an empty batch waits one poll interval and a failed batch
// backs off exponentially up to maxIdleBackoff.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, "outbox.dependency_unavailable", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := s.pollInterval
	for {
		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case processed:
			wait = s.pollInterval
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleepJittered(ctx, wait); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}
	}
}

// processBatch dispatches one locked batch and reports whether it held rows.
// Metrics are recorded only once the transaction commits.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var (
		events   []models.OutboxEvent
		outcomes []string
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		events, err = s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		outcomes = outcomes[:0]
		for _, event := range events {
			outcome, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		return len(events) > 0, err
	}
	for i, outcome := range outcomes {
		s.metrics.Outcome(string(events[i].EventType), outcome)
	}
	return len(events) > 0, nil
}

// dispatch settles one row. The returned error is reserved for bookkeeping
// failures that must roll the batch back.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (string, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return metrics.OutboxDeadLettered, s.deadLetterEvent(ctx, tx, event, nil, enums.OutboxDLQReasonNonRetryable, err)
	}

	attrs := messageAttributes(event, resolved)
	logCtx := s.logg.WithFields(ctx, logFields(event, attrs))

	started := s.now()
	err = s.publish(ctx, resolved.Descriptor.Topic, &gcppubsub.Message{Data: event.Payload, Attributes: attrs})
	s.metrics.ObservePublish(string(event.EventType), s.now().Sub(started))

	attempt := event.AttemptCount + 1
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(logCtx, "outbox.published")
		return metrics.OutboxPublished, nil
	case errors.As(err, &nonRetryable):
		return metrics.OutboxDeadLettered, s.deadLetterEvent(ctx, tx, event, attrs, enums.OutboxDLQReasonNonRetryable, err)
	case attempt >= s.maxAttempts:
		err = fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		return metrics.OutboxDeadLettered, s.deadLetterEvent(ctx, tx, event, attrs, enums.OutboxDLQReasonMaxAttempts, err)
	}

	s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{"attempt": attempt, "error": err.Error()}), "outbox.publish_retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return "", fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return metrics.OutboxRetried, nil
}

// deadLetterEvent records a DLQ row, closes the outbox row and copies the
// event to the dead letter topic. The DLQ row is the record of truth, so a
// failed copy is only logged.
func (s *Service) deadLetterEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, attrs map[string]string, reason enums.OutboxDLQErrorReason, cause error) error {
	if attrs == nil {
		attrs = baseAttributes(event)
	}
	logCtx := s.logg.WithFields(ctx, logFields(event, attrs))
	logCtx = s.logg.WithFields(logCtx, map[string]any{"error_reason": reason, "error": cause.Error()})
	s.logg.Warn(logCtx, "outbox.dead_lettered")

	message := cause.Error()
	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}

	if s.deadLetter == nil {
		return nil
	}
	dead := make(map[string]string, len(attrs)+3)
	for k, v := range attrs {
		dead[k] = v
	}
	dead["outbox_id"] = event.ID.String()
	dead["error_reason"] = string(reason)
	dead["attempt_count"] = fmt.Sprint(event.AttemptCount)
	if err := sendMessage(ctx, s.deadLetter, &gcppubsub.Message{Data: event.Payload, Attributes: dead}); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "forward_error", err.Error()), "outbox.dead_letter_forward_failed")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.topics(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	return sendMessage(ctx, pub, msg)
}

func logFields(event models.OutboxEvent, attrs map[string]string) map[string]any {
	fields := make(map[string]any, len(attrs)+2)
	for k, v := range attrs {
		fields[k] = v
	}
	fields["outbox_id"] = event.ID.String()
	fields["attempt_count"] = event.AttemptCount
	return fields
}
