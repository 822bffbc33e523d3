package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/notifications"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/metrics"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox/payloads"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

const (
	actionSubmit  = "submit"
	actionApprove = "approve"
	actionReject  = "reject"
	actionDelete  = "delete"
)

// Service is the review lifecycle: public submission plus admin moderation.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*ReviewDTO, error)
	Approve(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*ModerationResult, error)
	Reject(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*ModerationResult, error)
	Delete(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*ModerationResult, error)
	Get(ctx context.Context, id uuid.UUID) (*ReviewDTO, error)
	List(ctx context.Context, query ListQuery) (pagination.Page[ReviewDTO], error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, query ListQuery) (pagination.Page[ReviewDTO], error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the review service dependencies.
type ServiceParams struct {
	Repo          *Repository
	Nurseries     *nurseries.Repository
	Notifications notifications.Writer
	Outbox        outbox.Emitter
	DB            txRunner
	Metrics       *metrics.ModerationMetrics
	Logger        *logger.Logger
}

type service struct {
	repo          *Repository
	nurseries     *nurseries.Repository
	notifications notifications.Writer
	outbox        outbox.Emitter
	db            txRunner
	metrics       *metrics.ModerationMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("review repository is required")
	}
	if params.Nurseries == nil {
		return nil, fmt.Errorf("nursery repository is required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification writer is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &service{
		repo:          params.Repo,
		nurseries:     params.Nurseries,
		notifications: params.Notifications,
		outbox:        params.Outbox,
		db:            params.DB,
		metrics:       params.Metrics,
		logg:          params.Logger,
		now:           time.Now,
	}, nil
}

// Submit stores a pending review for an approved nursery. The notification
// and the outbox event commit with the row; review_count is not touched.
func (s *service) Submit(ctx context.Context, input SubmitInput) (dto *ReviewDTO, err error) {
	defer func() { s.metrics.Record(actionSubmit, err) }()

	input = input.normalize()
	if err := validateSubmit(input); err != nil {
		return nil, err
	}

	review := &Review{
		NurseryID: input.NurseryID,
		AuthorID:  input.AuthorID,
		Rating:    input.Rating,
		Title:     input.Title,
		Content:   input.Content,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Status:    enums.ReviewStatusPending,
	}

	var nurseryName string
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		nursery, err := s.nurseries.WithTx(tx).FindByID(ctx, input.NurseryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "nursery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load nursery")
		}
		// unapproved nurseries are not public and resolve like missing ones
		if !nursery.IsApproved {
			return pkgerrors.New(pkgerrors.CodeNotFound, "nursery not found")
		}
		nurseryName = nursery.Name

		if err := s.repo.WithTx(tx).Create(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		if _, err := s.notifications.Create(ctx, tx, notifications.CreateInput{
			Title:      "New review submitted",
			Message:    fmt.Sprintf("%s left a %d-star review for %s.", review.FirstName, review.Rating, nursery.Name),
			EntityType: enums.NotificationEntityReview,
			EntityID:   review.ID,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:  review.ID,
				NurseryID: review.NurseryID,
				AuthorID:  review.AuthorID,
				Rating:    review.Rating,
				CreatedAt: review.CreatedAt,
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "submit review")
	}

	s.logInfo(ctx, review.ID, "review submitted", map[string]any{"nursery": nurseryName})
	out := ToDTO(review)
	return &out, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (res *ModerationResult, err error) {
	defer func() { s.metrics.Record(actionApprove, err) }()
	return s.moderate(ctx, id, enums.ReviewStatusApproved, actor)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (res *ModerationResult, err error) {
	defer func() { s.metrics.Record(actionReject, err) }()
	return s.moderate(ctx, id, enums.ReviewStatusRejected, actor)
}

// moderate moves a review to target. The count delta is derived from the
// prior status, so repeating a decision leaves review_count alone and emits
// nothing.
func (s *service) moderate(ctx context.Context, id uuid.UUID, target enums.ReviewStatus, actor *outbox.ActorRef) (*ModerationResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review id required")
	}

	result := &ModerationResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		nurseryRepo := s.nurseries.WithTx(tx)

		review, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "load review")
		}
		prev := review.Status
		result.PreviousStatus = prev

		now := s.now().UTC()
		changed, err := repo.SetStatus(ctx, id, target, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review status")
		}
		if changed {
			review.Status = target
			review.ModeratedAt = &now
			if delta := countDelta(prev, target); delta != 0 {
				if err := nurseryRepo.AdjustReviewCount(ctx, review.NurseryID, delta); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust review count")
				}
			}
		}
		count, err := nurseryRepo.ReviewCount(ctx, review.NurseryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read review count")
		}

		result.Review = ToDTO(review)
		result.Changed = changed
		result.ReviewCount = count
		if !changed {
			return nil
		}

		if _, err := s.notifications.Create(ctx, tx, notifications.CreateInput{
			Title:      decisionTitle(target),
			Message:    fmt.Sprintf("Review %q by %s moved from %s to %s.", review.Title, review.FirstName, prev, target),
			EntityType: enums.NotificationEntityReview,
			EntityID:   review.ID,
		}); err != nil {
			return err
		}
		eventType := enums.EventReviewApproved
		if target == enums.ReviewStatusRejected {
			eventType = enums.EventReviewRejected
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         actor,
			Data: payloads.ReviewModeratedEvent{
				ReviewID:       review.ID,
				NurseryID:      review.NurseryID,
				PreviousStatus: prev,
				Status:         target,
				ReviewCount:    count,
				ModeratedAt:    now,
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "moderate review")
	}

	s.logInfo(ctx, id, "review moderated", map[string]any{
		"from":    result.PreviousStatus,
		"to":      target,
		"changed": result.Changed,
	})
	return result, nil
}

// Delete removes a review permanently. A review that is already gone is NotFound.
func (s *service) Delete(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (res *ModerationResult, err error) {
	defer func() { s.metrics.Record(actionDelete, err) }()
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review id required")
	}

	result := &ModerationResult{Changed: true}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		nurseryRepo := s.nurseries.WithTx(tx)

		review, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "load review")
		}
		result.PreviousStatus = review.Status

		deleted, err := repo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		if review.Status.Counted() {
			if err := nurseryRepo.AdjustReviewCount(ctx, review.NurseryID, -1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust review count")
			}
		}
		count, err := nurseryRepo.ReviewCount(ctx, review.NurseryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read review count")
		}
		result.Review = ToDTO(review)
		result.ReviewCount = count

		if _, err := s.notifications.Create(ctx, tx, notifications.CreateInput{
			Title:      "Review deleted",
			Message:    fmt.Sprintf("Review %q by %s was deleted.", review.Title, review.FirstName),
			EntityType: enums.NotificationEntityReview,
			EntityID:   review.ID,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewDeleted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         actor,
			Data: payloads.ReviewDeletedEvent{
				ReviewID:       review.ID,
				NurseryID:      review.NurseryID,
				PreviousStatus: review.Status,
				ReviewCount:    count,
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "delete review")
	}

	s.logInfo(ctx, id, "review deleted", map[string]any{"from": result.PreviousStatus})
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ReviewDTO, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load review")
	}
	dto := ToDTO(review)
	return &dto, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (pagination.Page[ReviewDTO], error) {
	return s.list(ctx, query, nil)
}

// ListByAuthor lists the reviews a signed-in parent wrote, in every status.
func (s *service) ListByAuthor(ctx context.Context, authorID uuid.UUID, query ListQuery) (pagination.Page[ReviewDTO], error) {
	if authorID == uuid.Nil {
		return pagination.Page[ReviewDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}
	return s.list(ctx, query, &authorID)
}

func (s *service) list(ctx context.Context, query ListQuery, authorID *uuid.UUID) (pagination.Page[ReviewDTO], error) {
	filter := query.Filter
	if filter == "" {
		filter = enums.ReviewFilterAll
	}
	if !filter.IsValid() {
		return pagination.Page[ReviewDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	sortField := query.Sort
	if sortField == "" {
		sortField = enums.ReviewSortCreatedAt
	}
	if !sortField.IsValid() {
		return pagination.Page[ReviewDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort field")
	}
	dir := query.Dir
	if dir == "" {
		dir = enums.SortDesc
	}
	if dir != enums.SortAsc && dir != enums.SortDesc {
		return pagination.Page[ReviewDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort direction")
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return pagination.Page[ReviewDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	status, hasStatus := filter.Status()
	rows, err := s.repo.List(ctx, listParams{
		Status:    status,
		HasStatus: hasStatus,
		Search:    strings.TrimSpace(query.Search),
		Sort:      sortField,
		Dir:       dir,
		AuthorID:  authorID,
		Offset:    cursor.Offset,
		Limit:     pagination.LimitWithBuffer(query.Limit),
	})
	if err != nil {
		return pagination.Page[ReviewDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	items := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		dto, err := rowToDTO(row)
		if err != nil {
			return pagination.Page[ReviewDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode review")
		}
		items = append(items, dto)
	}
	page := pagination.BuildPage(items, cursor, query.Limit)
	page.Items = pagination.DedupeBy(page.Items, func(r ReviewDTO) uuid.UUID { return r.ID })
	return page, nil
}

func (s *service) CountByStatus(ctx context.Context) (StatusCounts, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return StatusCounts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reviews")
	}
	return counts, nil
}

func rowToDTO(row reviewListRow) (ReviewDTO, error) {
	status, err := enums.ReviewStatusFromFlags(row.IsApproved, row.IsRejected)
	if err != nil {
		return ReviewDTO{}, fmt.Errorf("review %s: %w", row.ID, err)
	}
	return ReviewDTO{
		ID:          row.ID,
		NurseryID:   row.NurseryID,
		NurseryName: row.NurseryName,
		NurserySlug: row.NurserySlug,
		AuthorID:    row.AuthorID,
		Rating:      row.Rating,
		Title:       row.Title,
		Content:     row.Content,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Email:       row.Email,
		Status:      status,
		ModeratedAt: row.ModeratedAt,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// countDelta is the change to review_count when moving prev to next.
func countDelta(prev, next enums.ReviewStatus) int {
	switch {
	case !prev.Counted() && next.Counted():
		return 1
	case prev.Counted() && !next.Counted():
		return -1
	}
	return 0
}

func decisionTitle(status enums.ReviewStatus) string {
	if status == enums.ReviewStatusApproved {
		return "Review approved"
	}
	return "Review rejected"
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// asDependency keeps typed errors and wraps anything else.
func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func (s *service) logInfo(ctx context.Context, id uuid.UUID, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithReviewID(ctx, id.String())
	s.logg.Info(s.logg.WithFields(logCtx, fields), msg)
}
