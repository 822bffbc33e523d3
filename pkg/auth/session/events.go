package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// EventType names a session lifecycle change.
type EventType string

const (
	EventLogin   EventType = "login"
	EventRefresh EventType = "refresh"
	EventLogout  EventType = "logout"
)

// EventsTopic is the pub/sub topic session events are published on.
const EventsTopic = "session"

// Event is broadcast whenever a session starts, rotates or ends so other
// processes (and other tabs of a client) can re-derive their auth state.
type Event struct {
	Type     EventType           `json:"type"`
	Domain   enums.SessionDomain `json:"domain"`
	UserID   uuid.UUID           `json:"userId"`
	AccessID string              `json:"accessId"`
	At       time.Time           `json:"at"`
}

type eventPublisher interface {
	Publish(ctx context.Context, channel string, payload any) (int64, error)
	EventsChannel(topic string) string
}

// EventBus publishes session events on the shared events channel.
type EventBus struct {
	pub eventPublisher
}

func NewEventBus(pub eventPublisher) *EventBus {
	return &EventBus{pub: pub}
}

// Publish is best effort; a nil bus drops the event.
func (b *EventBus) Publish(ctx context.Context, evt Event) error {
	if b == nil || b.pub == nil {
		return nil
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = b.pub.Publish(ctx, b.pub.EventsChannel(EventsTopic), payload)
	return err
}

// DecodeEvent parses a payload received from the events channel.
func DecodeEvent(payload string) (Event, error) {
	var evt Event
	err := json.Unmarshal([]byte(payload), &evt)
	return evt, err
}
