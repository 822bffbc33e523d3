package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

const (
	ReviewCountReconcileJobName = "review-count-reconcile"

	defaultReconcileBatch = 200
)

type reviewCountRepo interface {
	FindReviewCountDrift(ctx context.Context, limit int) ([]nurseries.ReviewCountDrift, error)
	SetReviewCount(ctx context.Context, id uuid.UUID, expected, actual int) (bool, error)
}

type ReviewCountReconcileJobParams struct {
	Logger     *logger.Logger
	Repository reviewCountRepo
	Batch      int
}

// NewReviewCountReconcileJob recomputes review_count from approved reviews
// for nurseries whose cached value drifted.
func NewReviewCountReconcileJob(params ReviewCountReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("nursery repository required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &reviewCountReconcileJob{
		logg:  params.Logger,
		repo:  params.Repository,
		batch: batch,
	}, nil
}

type reviewCountReconcileJob struct {
	logg  *logger.Logger
	repo  reviewCountRepo
	batch int
}

func (j *reviewCountReconcileJob) Name() string { return ReviewCountReconcileJobName }

// Run repairs one batch. Each nursery is fixed with a conditional update, so a
// moderation that lands between the scan and the write wins and the row is
// picked up on the next run if it is still off.
func (j *reviewCountReconcileJob) Run(ctx context.Context) (Result, error) {
	drifts, err := j.repo.FindReviewCountDrift(ctx, j.batch)
	if err != nil {
		return Result{}, fmt.Errorf("scan review count drift: %w", err)
	}

	var (
		repaired int64
		skipped  int
		errs     error
	)
	for _, d := range drifts {
		ok, err := j.repo.SetReviewCount(ctx, d.NurseryID, d.Cached, d.Actual)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("nursery %s: %w", d.NurseryID, err))
			continue
		}
		if !ok {
			skipped++
			continue
		}
		repaired++
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"nursery_id": d.NurseryID.String(),
			"cached":     d.Cached,
			"actual":     d.Actual,
		}), "review count drift repaired")
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"drifted":       len(drifts),
		"rows_repaired": repaired,
		"skipped":       skipped,
	})
	j.logg.Info(logCtx, "review count reconcile complete")
	return Result{Rows: repaired}, errs
}
