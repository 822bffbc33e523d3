package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox/payloads"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox/registry"
)

const jitterWindow = 250 * time.Millisecond

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// baseAttributes are set on every message, including rows whose payload
// could not be decoded.
func baseAttributes(event models.OutboxEvent) map[string]string {
	return map[string]string{
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// messageAttributes adds the envelope identity and the review and nursery ids
// subscribers filter on without decoding the body.
func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	attrs := baseAttributes(event)
	attrs["event_id"] = resolved.Envelope.EventID
	attrs["schema_version"] = strconv.Itoa(resolved.Envelope.Version)
	if !resolved.Envelope.OccurredAt.IsZero() {
		attrs["occurred_at"] = resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	}

	switch p := resolved.Payload.(type) {
	case *payloads.ReviewSubmittedEvent:
		attrs["review_id"] = p.ReviewID.String()
		attrs["nursery_id"] = p.NurseryID.String()
		attrs["rating"] = strconv.Itoa(p.Rating)
	case *payloads.ReviewModeratedEvent:
		attrs["review_id"] = p.ReviewID.String()
		attrs["nursery_id"] = p.NurseryID.String()
		attrs["review_status"] = string(p.Status)
	case *payloads.ReviewDeletedEvent:
		attrs["review_id"] = p.ReviewID.String()
		attrs["nursery_id"] = p.NurseryID.String()
	case *payloads.NurseryApprovedEvent:
		attrs["nursery_id"] = p.NurseryID.String()
		attrs["nursery_slug"] = p.Slug
	}
	return attrs
}

func sendMessage(ctx context.Context, pub publisher, msg *gcppubsub.Message) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(errors.New("publisher returned no result"))
	}
	_, err := result.Get(ctx)
	return err
}

func sleepJittered(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d + rand.N(jitterWindow))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func wrapPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if r := g.p.Publish(ctx, msg); r != nil {
		return r
	}
	return nil
}
