package client

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

const adminNotifications = "/api/admin/v1/notifications"

func (c *Client) RecentNotifications(ctx context.Context, limit int) (*RecentNotifications, error) {
	req := get(adminNotifications)
	if limit > 0 {
		req = req.param("limit", strconv.Itoa(limit))
	}
	res, err := do[RecentNotifications](ctx, c, req)
	if err != nil {
		return nil, err
	}
	res.Notifications = pagination.DedupeBy(res.Notifications, func(n Notification) uuid.UUID { return n.ID })
	return &res, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id uuid.UUID) (*MarkReadResult, error) {
	res, err := do[MarkReadResult](ctx, c, post(adminNotifications+"/"+id.String()+"/read"))
	if err != nil {
		return nil, err
	}
	return &res, nil
}
