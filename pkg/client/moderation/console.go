// Package moderation drives the admin review queue: one action per review at
// a time, deletes behind a confirmation and list results that cannot land
// after the view was closed.
package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client/async"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

var (
	ErrBusy            = errors.New("moderation: an action for this review is already in flight")
	ErrNoPendingDelete = errors.New("moderation: delete was not requested")
	ErrStale           = async.ErrStale
)

// API is the slice of client.Client the console needs.
type API interface {
	ListReviews(ctx context.Context, q client.ReviewQuery) (*client.ReviewPage, error)
	ApproveReview(ctx context.Context, id uuid.UUID) (*client.ModerationResult, error)
	RejectReview(ctx context.Context, id uuid.UUID) (*client.ModerationResult, error)
	DeleteReview(ctx context.Context, id uuid.UUID) (*client.ModerationResult, error)
}

type Options struct {
	// ActionTimeout bounds each approve, reject or delete. Zero leaves it to
	// the client timeout.
	ActionTimeout time.Duration
	RevealDelay   time.Duration
	Logger        *logger.Logger
}

type Console struct {
	api     API
	logg    *logger.Logger
	timeout time.Duration
	list    *async.Value[[]client.Review]

	mu             sync.Mutex
	busy           map[uuid.UUID]struct{}
	pendingDeletes map[uuid.UUID]struct{}
}

func NewConsole(api API, opts Options) *Console {
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	var listOpts []async.Option
	if opts.RevealDelay > 0 {
		listOpts = append(listOpts, async.WithRevealDelay(opts.RevealDelay))
	}
	return &Console{
		api:            api,
		logg:           logg,
		timeout:        opts.ActionTimeout,
		list:           async.New[[]client.Review](listOpts...),
		busy:           map[uuid.UUID]struct{}{},
		pendingDeletes: map[uuid.UUID]struct{}{},
	}
}

// Refresh loads the queue. A result that arrives after Close or after a newer
// Refresh is discarded and ErrStale returned.
func (c *Console) Refresh(ctx context.Context, q client.ReviewQuery) ([]client.Review, error) {
	return c.list.Run(ctx, func(ctx context.Context) ([]client.Review, error) {
		page, err := c.api.ListReviews(ctx, q)
		if err != nil {
			return nil, err
		}
		return pagination.DedupeBy(page.Items, func(r client.Review) uuid.UUID { return r.ID }), nil
	})
}

// Reviews returns the last settled queue.
func (c *Console) Reviews() []client.Review {
	st := c.list.State()
	if st.Status != async.Settled {
		return nil
	}
	return append([]client.Review(nil), st.Value...)
}

func (c *Console) State() async.State[[]client.Review] {
	return c.list.State()
}

func (c *Console) ShowLoader() bool {
	return c.list.ShowLoader()
}

// Close detaches the view. Outstanding refreshes no longer apply.
func (c *Console) Close() {
	c.list.Reset()
	c.mu.Lock()
	c.pendingDeletes = map[uuid.UUID]struct{}{}
	c.mu.Unlock()
}

func (c *Console) Busy(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[id]
	return ok
}

func (c *Console) Approve(ctx context.Context, id uuid.UUID) (*client.ModerationResult, error) {
	return c.act(ctx, id, "approve", c.api.ApproveReview)
}

func (c *Console) Reject(ctx context.Context, id uuid.UUID) (*client.ModerationResult, error) {
	return c.act(ctx, id, "reject", c.api.RejectReview)
}

// RequestDelete opens the confirmation step for id.
func (c *Console) RequestDelete(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.busy[id]; ok {
		return ErrBusy
	}
	c.pendingDeletes[id] = struct{}{}
	return nil
}

func (c *Console) DeletePending(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pendingDeletes[id]
	return ok
}

func (c *Console) CancelDelete(id uuid.UUID) {
	c.mu.Lock()
	delete(c.pendingDeletes, id)
	c.mu.Unlock()
}

// ConfirmDelete runs a delete that RequestDelete opened.
func (c *Console) ConfirmDelete(ctx context.Context, id uuid.UUID) (*client.ModerationResult, error) {
	c.mu.Lock()
	if _, ok := c.pendingDeletes[id]; !ok {
		c.mu.Unlock()
		return nil, ErrNoPendingDelete
	}
	c.mu.Unlock()

	res, err := c.act(ctx, id, "delete", c.api.DeleteReview)
	if !errors.Is(err, ErrBusy) {
		c.CancelDelete(id)
	}
	return res, err
}

type actionFunc func(context.Context, uuid.UUID) (*client.ModerationResult, error)

func (c *Console) act(ctx context.Context, id uuid.UUID, action string, fn actionFunc) (*client.ModerationResult, error) {
	c.mu.Lock()
	if _, ok := c.busy[id]; ok {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.busy[id] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.busy, id)
		c.mu.Unlock()
	}()

	ctx = c.logg.WithReviewID(c.logg.WithField(ctx, "action", action), id.String())
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := fn(ctx, id)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "kind", string(client.KindOf(err))), "moderation.action.failed")
		return nil, err
	}
	c.logg.Debug(ctx, "moderation.action.complete")
	c.apply(id, action, res)
	return res, nil
}

// apply patches the settled queue so the view reflects the outcome without a
// refetch.
func (c *Console) apply(id uuid.UUID, action string, res *client.ModerationResult) {
	c.list.Update(func(items []client.Review) []client.Review {
		next := make([]client.Review, 0, len(items))
		for _, r := range items {
			if r.ID != id {
				next = append(next, r)
				continue
			}
			switch action {
			case "delete":
				continue
			case "approve":
				r.Status = enums.ReviewStatusApproved
			case "reject":
				r.Status = enums.ReviewStatusRejected
			}
			if res != nil && res.Review.ID == id {
				r.ModeratedAt = res.Review.ModeratedAt
			}
			next = append(next, r)
		}
		return next
	})
}
