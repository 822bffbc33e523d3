package client

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

type feedAPI interface {
	RecentNotifications(ctx context.Context, limit int) (*RecentNotifications, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) (*MarkReadResult, error)
}

// Feed is the admin notification bell: the latest entries plus a local
// unread counter that never drops below zero.
type Feed struct {
	api  feedAPI
	logg *logger.Logger

	mu     sync.Mutex
	items  []Notification
	unread int64
	read   map[uuid.UUID]struct{}
}

func NewFeed(api feedAPI, logg *logger.Logger) *Feed {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Feed{api: api, logg: logg, read: map[uuid.UUID]struct{}{}}
}

// Load replaces the feed with the newest entries and the server's unread count.
func (f *Feed) Load(ctx context.Context, limit int) ([]Notification, error) {
	res, err := f.api.RecentNotifications(ctx, limit)
	if err != nil {
		f.logg.Debug(ctx, "feed.load.failed")
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = res.Notifications
	f.unread = max(res.UnreadCount, 0)
	for _, n := range res.Notifications {
		if n.IsRead {
			f.read[n.ID] = struct{}{}
		}
	}
	return append([]Notification(nil), f.items...), nil
}

// MarkRead marks one entry read. The counter drops by one only when the
// server reports a change, and an id already read or in flight is not sent
// again.
func (f *Feed) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	if _, ok := f.read[id]; ok {
		f.mu.Unlock()
		return false, nil
	}
	f.read[id] = struct{}{}
	f.mu.Unlock()

	res, err := f.api.MarkNotificationRead(ctx, id)
	if err != nil {
		f.mu.Lock()
		delete(f.read, id)
		f.mu.Unlock()
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsRead = true
		}
	}
	if !res.Changed {
		return false, nil
	}
	if f.unread > 0 {
		f.unread--
	}
	return true, nil
}

func (f *Feed) Unread() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

func (f *Feed) Items() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.items...)
}
