package nurseries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox/payloads"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

const (
	detailReviewLimit = 50
	maxSlugAttempts   = 5
)

// Service exposes nursery listing, lookup and admin approval.
type Service interface {
	ListPublic(ctx context.Context, search string, params pagination.Params) (pagination.Page[NurseryDTO], error)
	GetBySlug(ctx context.Context, slug string) (*NurseryDetail, error)
	Approve(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*NurseryDTO, error)
	Create(ctx context.Context, tx *gorm.DB, input CreateNurseryDTO) (*NurseryDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo   *Repository
	DB     txRunner
	Outbox outbox.Emitter
	Logger *logger.Logger
}

type service struct {
	repo   *Repository
	db     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("nursery repository is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	return &service{
		repo:   params.Repo,
		db:     params.DB,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

func (s *service) ListPublic(ctx context.Context, search string, params pagination.Params) (pagination.Page[NurseryDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[NurseryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListApproved(ctx, strings.TrimSpace(search), cursor.Offset, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[NurseryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list nurseries")
	}
	dtos := make([]NurseryDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, FromModel(&rows[i]))
	}
	return pagination.BuildPage(dtos, cursor, params.Limit), nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*NurseryDetail, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	nursery, err := s.repo.FindApprovedBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "nursery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load nursery")
	}
	summaries, err := s.repo.RatingSummaries(ctx, []uuid.UUID{nursery.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rating")
	}
	reviews, err := s.repo.ApprovedReviews(ctx, nursery.ID, detailReviewLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviews")
	}

	detail := &NurseryDetail{
		NurseryDTO:    FromModel(nursery),
		AverageRating: summaries[nursery.ID].Average(),
		Reviews:       make([]PublicReview, 0, len(reviews)),
	}
	for _, rv := range reviews {
		detail.Reviews = append(detail.Reviews, PublicReview{
			ID:        rv.ID,
			Rating:    rv.Rating,
			Title:     rv.Title,
			Content:   rv.Content,
			FirstName: rv.FirstName,
			CreatedAt: rv.CreatedAt,
		})
	}
	return detail, nil
}

// Approve lists a nursery publicly. Approving twice is a no-op that returns
// the current state without emitting another event.
func (s *service) Approve(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*NurseryDTO, error) {
	var out NurseryDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		nursery, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "nursery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load nursery")
		}
		now := s.now().UTC()
		changed, err := repo.Approve(ctx, id, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve nursery")
		}
		nursery.IsApproved = true
		out = FromModel(nursery)
		if !changed {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNurseryApproved,
			AggregateType: enums.AggregateNursery,
			AggregateID:   nursery.ID,
			Actor:         actor,
			Data: payloads.NurseryApprovedEvent{
				NurseryID:  nursery.ID,
				OwnerID:    nursery.OwnerID,
				Slug:       nursery.Slug,
				ApprovedAt: now,
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "approve nursery")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "nursery_id", id.String()), "nursery approved")
	}
	return &out, nil
}

// Create inserts a pending nursery inside the caller's transaction. The slug
// is derived from the name and suffixed when already taken.
func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateNurseryDTO) (*NurseryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nursery name is required")
	}
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner is required")
	}
	repo := s.repo.WithTx(tx)

	base := Slugify(name)
	slug := base
	for attempt := 0; ; attempt++ {
		exists, err := repo.SlugExists(ctx, slug)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		}
		if !exists {
			break
		}
		if attempt >= maxSlugAttempts {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique slug")
		}
		slug = slugWithSuffix(base)
	}

	nursery := &models.Nursery{
		Name:        name,
		Slug:        slug,
		OwnerID:     input.OwnerID,
		GroupID:     input.GroupID,
		Town:        strings.TrimSpace(input.Town),
		Postcode:    strings.ToUpper(strings.TrimSpace(input.Postcode)),
		Description: input.Description,
		AgeGroups:   input.AgeGroups,
	}
	if err := repo.Create(ctx, nursery); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create nursery")
	}
	dto := FromModel(nursery)
	return &dto, nil
}

// asDependency keeps typed errors and wraps anything else.
func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
