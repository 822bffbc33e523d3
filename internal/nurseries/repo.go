package nurseries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
)

// Repository persists nurseries and the cached review_count column.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, nursery *models.Nursery) error {
	return r.db.WithContext(ctx).Create(nursery).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Nursery, error) {
	var nursery models.Nursery
	if err := r.db.WithContext(ctx).First(&nursery, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &nursery, nil
}

// FindApprovedBySlug hides unapproved nurseries from public lookups.
func (r *Repository) FindApprovedBySlug(ctx context.Context, slug string) (*models.Nursery, error) {
	var nursery models.Nursery
	err := r.db.WithContext(ctx).
		Where("slug = ? AND is_approved = ?", slug, true).
		First(&nursery).Error
	if err != nil {
		return nil, err
	}
	return &nursery, nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Nursery{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// ListApproved returns approved nurseries matching search on name, town or
// postcode, ordered by name. It fetches limit rows starting at offset.
func (r *Repository) ListApproved(ctx context.Context, search string, offset, limit int) ([]models.Nursery, error) {
	query := r.db.WithContext(ctx).Model(&models.Nursery{}).Where("is_approved = ?", true)
	if search != "" {
		op := dbpkg.LikeOperator(r.db)
		pattern := dbpkg.ContainsPattern(search)
		query = query.Where(
			fmt.Sprintf("(name %[1]s ? ESCAPE '\\' OR town %[1]s ? ESCAPE '\\' OR postcode %[1]s ? ESCAPE '\\')", op),
			pattern, pattern, pattern,
		)
	}
	var rows []models.Nursery
	err := query.Order("name ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Nursery, error) {
	var rows []models.Nursery
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// Approve flips is_approved. It reports false when the nursery was already approved.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Nursery{}).
		Where("id = ? AND is_approved = ?", id, false).
		Updates(map[string]any{"is_approved": true, "updated_at": at})
	return res.RowsAffected > 0, res.Error
}

// AdjustReviewCount applies delta to review_count, never taking it below zero.
func (r *Repository) AdjustReviewCount(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	query := r.db.WithContext(ctx).Model(&models.Nursery{}).Where("id = ?", id)
	if delta < 0 {
		query = query.Where("review_count >= ?", -delta)
	}
	res := query.UpdateColumn("review_count", gorm.Expr("review_count + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("review_count for nursery %s would go negative", id)
	}
	return nil
}

func (r *Repository) ReviewCount(ctx context.Context, id uuid.UUID) (int, error) {
	var nursery models.Nursery
	err := r.db.WithContext(ctx).Select("review_count").First(&nursery, "id = ?", id).Error
	return nursery.ReviewCount, err
}

func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Nursery{}).Count(&count).Error
	return count, err
}

// RatingSummaries aggregates approved ratings for the given nurseries.
func (r *Repository) RatingSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]RatingSummary, error) {
	out := make(map[uuid.UUID]RatingSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		NurseryID uuid.UUID
		Count     int64
		Sum       int64
	}
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("nursery_id, COUNT(*) AS count, COALESCE(SUM(rating), 0) AS sum").
		Where("nursery_id IN ? AND is_approved = ?", ids, true).
		Group("nursery_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.NurseryID] = RatingSummary{Count: row.Count, Sum: row.Sum}
	}
	return out, nil
}

// ApprovedReviews returns the newest approved reviews for a nursery.
func (r *Repository) ApprovedReviews(ctx context.Context, nurseryID uuid.UUID, limit int) ([]models.Review, error) {
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Where("nursery_id = ? AND is_approved = ?", nurseryID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ReviewCountDrift is a nursery whose cached count disagrees with its approved reviews.
type ReviewCountDrift struct {
	NurseryID uuid.UUID
	Cached    int
	Actual    int
}

// FindReviewCountDrift lists up to limit nurseries whose review_count does not
// match the number of approved reviews.
func (r *Repository) FindReviewCountDrift(ctx context.Context, limit int) ([]ReviewCountDrift, error) {
	var rows []ReviewCountDrift
	err := r.db.WithContext(ctx).Raw(`
SELECT n.id AS nursery_id, n.review_count AS cached, COALESCE(a.actual, 0) AS actual
FROM nurseries n
LEFT JOIN (
  SELECT nursery_id, COUNT(*) AS actual
  FROM reviews
  WHERE is_approved = ?
  GROUP BY nursery_id
) a ON a.nursery_id = n.id
WHERE n.review_count <> COALESCE(a.actual, 0)
ORDER BY n.id
LIMIT ?`, true, limit).Scan(&rows).Error
	return rows, err
}

// SetReviewCount overwrites review_count only if it still holds expected, so a
// concurrent moderation between the scan and the write is not clobbered.
func (r *Repository) SetReviewCount(ctx context.Context, id uuid.UUID, expected, actual int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Nursery{}).
		Where("id = ? AND review_count = ?", id, expected).
		UpdateColumn("review_count", actual)
	return res.RowsAffected > 0, res.Error
}
