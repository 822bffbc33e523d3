package dashboards

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
)

type invalidator interface {
	InvalidateAdmin(ctx context.Context) error
}

// Consumer drops the cached admin dashboard whenever a review or nursery
// event arrives, so the next read recomputes it.
type Consumer struct {
	dashboards   invalidator
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer builds a dashboard cache consumer.
func NewConsumer(dashboards invalidator, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if dashboards == nil {
		return nil, fmt.Errorf("dashboard service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("review events subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		dashboards:   dashboards,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Attributes, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	eventType := enums.OutboxEventType(attrs["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	// Deleting the snapshot is idempotent, so redelivery needs no dedupe.
	if err := c.dashboards.InvalidateAdmin(ctx); err != nil {
		c.logg.Error(logCtx, "dashboard invalidation failed", err)
		return processResult{nack: true}
	}
	c.logg.Debug(c.logg.WithField(logCtx, "event_id", envelope.EventID), "admin dashboard invalidated")
	return processResult{ack: true}
}
