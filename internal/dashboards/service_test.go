package dashboards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/notifications"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/reviews"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/dbtest"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

type memoryCache struct {
	values map[string]string
	gets   int
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.gets++
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryCache) CacheKey(name string) string {
	return "nf:cache:" + name
}

type fixture struct {
	conn      *gorm.DB
	reviews   reviews.Service
	nurseries *nurseries.Repository
	cache     *memoryCache
	svc       Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t, t.Name())
	notifRepo := notifications.NewRepository(conn)
	notifSvc, err := notifications.NewService(notifRepo)
	require.NoError(t, err)
	nurseryRepo := nurseries.NewRepository(conn)
	reviewSvc, err := reviews.NewService(reviews.ServiceParams{
		Repo:          reviews.NewRepository(conn),
		Nurseries:     nurseryRepo,
		Notifications: notifSvc,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), nil),
		DB:            db.NewFromConn(conn),
	})
	require.NoError(t, err)
	cache := newMemoryCache()
	svc, err := NewService(ServiceParams{
		Reviews:       reviewSvc,
		Nurseries:     nurseryRepo,
		Notifications: notifRepo,
		Cache:         cache,
	})
	require.NoError(t, err)
	return fixture{conn: conn, reviews: reviewSvc, nurseries: nurseryRepo, cache: cache, svc: svc}
}

func (f fixture) nursery(t *testing.T, name string, owner uuid.UUID) *models.Nursery {
	t.Helper()
	n := &models.Nursery{Name: name, Slug: nurseries.Slugify(name), OwnerID: owner, IsApproved: true}
	require.NoError(t, f.conn.Create(n).Error)
	return n
}

func (f fixture) submit(t *testing.T, nurseryID uuid.UUID, rating int, author *uuid.UUID) *reviews.ReviewDTO {
	t.Helper()
	r, err := f.reviews.Submit(context.Background(), reviews.SubmitInput{
		NurseryID: nurseryID,
		AuthorID:  author,
		Rating:    rating,
		Title:     "Lovely",
		Content:   "Great place",
		FirstName: "Sam",
		LastName:  "Lee",
		Email:     "sam@example.com",
	})
	require.NoError(t, err)
	return r
}

func TestAdminDashboardAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.nursery(t, "Acorn House", uuid.New())
	first := f.submit(t, n.ID, 5, nil)
	f.submit(t, n.ID, 3, nil)
	_, err := f.reviews.Approve(ctx, first.ID, nil)
	require.NoError(t, err)

	dash, err := f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, reviews.StatusCounts{Pending: 1, Approved: 1, Total: 2}, dash.Reviews)
	assert.EqualValues(t, 1, dash.TotalNurseries)
	assert.EqualValues(t, 3, dash.UnreadNotifications)
	require.Len(t, dash.RecentPending, 1)
	assert.Equal(t, "Acorn House", dash.RecentPending[0].NurseryName)
	assert.Contains(t, f.cache.values, "nf:cache:admin_dashboard")

	// a new submission is hidden until the snapshot is invalidated
	f.submit(t, n.ID, 4, nil)
	cached, err := f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cached.Reviews.Total)

	require.NoError(t, f.svc.InvalidateAdmin(ctx))
	fresh, err := f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, fresh.Reviews.Total)
}

func TestAdminDashboardCacheErrorFallsBack(t *testing.T) {
	f := newFixture(t)
	f.cache.getErr = errors.New("redis down")

	dash, err := f.svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dash.Reviews.Total)
	assert.NotNil(t, dash.RecentPending)
}

func TestOwnerDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	a := f.nursery(t, "Acorn House", owner)
	b := f.nursery(t, "Birch Tree", owner)
	f.nursery(t, "Someone Else", uuid.New())

	for _, rating := range []int{5, 4, 4} {
		r := f.submit(t, a.ID, rating, nil)
		_, err := f.reviews.Approve(ctx, r.ID, nil)
		require.NoError(t, err)
	}
	f.submit(t, b.ID, 1, nil)

	dash, err := f.svc.Owner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, dash.Nurseries, 2)
	assert.Equal(t, "Acorn House", dash.Nurseries[0].Name)
	assert.Equal(t, 3, dash.Nurseries[0].ReviewCount)
	assert.Len(t, dash.Nurseries[0].Reviews, 3)
	assert.True(t, decimal.RequireFromString("4.3").Equal(dash.Nurseries[0].AverageRating))
	assert.True(t, dash.Nurseries[1].AverageRating.IsZero())
	assert.Empty(t, dash.Nurseries[1].Reviews, "pending reviews are not shown to owners")
	assert.Equal(t, 3, dash.TotalReviews)
	assert.True(t, decimal.RequireFromString("4.3").Equal(dash.AverageRating))

	_, err = f.svc.Owner(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParentDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := uuid.New()
	n := f.nursery(t, "Acorn House", uuid.New())

	mine := f.submit(t, n.ID, 5, &parent)
	second := f.submit(t, n.ID, 2, &parent)
	f.submit(t, n.ID, 4, nil)
	_, err := f.reviews.Approve(ctx, mine.ID, nil)
	require.NoError(t, err)
	_, err = f.reviews.Reject(ctx, second.ID, nil)
	require.NoError(t, err)
	f.submit(t, n.ID, 3, &parent)

	dash, err := f.svc.Parent(ctx, parent, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, dash.Reviews, 3)
	assert.Equal(t, 1, dash.Approved)
	assert.Equal(t, 1, dash.Rejected)
	assert.Equal(t, 1, dash.Pending)
}

type recordingInvalidator struct {
	calls int
	err   error
}

func (r *recordingInvalidator) InvalidateAdmin(context.Context) error {
	r.calls++
	return r.err
}

func TestConsumerProcess(t *testing.T) {
	inv := &recordingInvalidator{}
	c := &Consumer{dashboards: inv, logg: logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})}
	ctx := context.Background()
	payload, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: json.RawMessage(`{}`)})
	require.NoError(t, err)

	res := c.process(ctx, "m1", map[string]string{"event_type": string(enums.EventReviewApproved)}, payload)
	assert.True(t, res.ack)
	assert.Equal(t, 1, inv.calls)

	res = c.process(ctx, "m2", map[string]string{"event_type": "something_else"}, payload)
	assert.True(t, res.ack)
	assert.Equal(t, 1, inv.calls)

	res = c.process(ctx, "m3", map[string]string{"event_type": string(enums.EventReviewDeleted)}, []byte("{"))
	assert.True(t, res.ack, "undecodable payloads are dropped")
	assert.Equal(t, 1, inv.calls)

	inv.err = errors.New("redis down")
	res = c.process(ctx, "m4", map[string]string{"event_type": string(enums.EventReviewSubmitted)}, payload)
	assert.True(t, res.nack)
}

func TestAdminCacheRefreshesUnreadAfterMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.nursery(t, "Birch Lodge", uuid.New())
	f.submit(t, n.ID, 4, nil)
	f.submit(t, n.ID, 2, nil)

	dash, err := f.svc.Admin(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, dash.UnreadNotifications)

	feed, err := notifications.NewService(
		notifications.NewRepository(f.conn),
		notifications.WithDashboardCache(NewAdminCache(f.cache)),
	)
	require.NoError(t, err)
	recent, err := feed.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, recent.Notifications)

	_, err = feed.MarkRead(ctx, recent.Notifications[0].ID)
	require.NoError(t, err)
	assert.NotContains(t, f.cache.values, "nf:cache:admin_dashboard")

	fresh, err := f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fresh.UnreadNotifications)

	_, err = feed.MarkAllRead(ctx)
	require.NoError(t, err)
	fresh, err = f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.Zero(t, fresh.UnreadNotifications)
}

func TestAdminCacheNilIsNoop(t *testing.T) {
	var c *AdminCache
	assert.NoError(t, c.InvalidateAdmin(context.Background()))
	assert.NoError(t, NewAdminCache(nil).InvalidateAdmin(context.Background()))
}
