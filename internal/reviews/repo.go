package reviews

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// statusOrderExpr ranks pending, approved, rejected in that order.
const statusOrderExpr = "CASE WHEN r.is_approved THEN 1 WHEN r.is_rejected THEN 2 ELSE 0 END"

// Repository persists reviews. It is the only place the status is translated
// to and from the is_approved/is_rejected columns.
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

func (r *Repository) Create(ctx context.Context, review *Review) error {
	row := review.toModel()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	review.ID = row.ID
	review.CreatedAt = row.CreatedAt
	review.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate locks the row on postgres so concurrent moderation of the
// same review serializes on it.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Review, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(query, id)
}

func (r *Repository) find(query *gorm.DB, id uuid.UUID) (*Review, error) {
	var row models.Review
	if err := query.First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return fromModel(&row)
}

// SetStatus writes the flag pair for status. It reports false when the row
// already held that status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.ReviewStatus, at time.Time) (bool, error) {
	approved, rejected := status.Flags()
	res := r.db.WithContext(ctx).Model(&models.Review{}).
		Where("id = ? AND NOT (is_approved = ? AND is_rejected = ?)", id, approved, rejected).
		Updates(map[string]any{
			"is_approved":  approved,
			"is_rejected":  rejected,
			"moderated_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected > 0, res.Error
}

// Delete removes the row and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Review{})
	return res.RowsAffected > 0, res.Error
}

type listParams struct {
	Status    enums.ReviewStatus
	HasStatus bool
	Search    string
	Sort      enums.ReviewSortField
	Dir       enums.SortDirection
	AuthorID  *uuid.UUID
	Offset    int
	Limit     int
}

// List returns reviews joined with their nursery, filtered, searched and
// ordered per params. Ties break on review id so offsets stay stable.
func (r *Repository) List(ctx context.Context, params listParams) ([]reviewListRow, error) {
	query := r.db.WithContext(ctx).
		Table("reviews AS r").
		Select("r.id, r.nursery_id, r.author_id, r.rating, r.title, r.content, r.first_name, r.last_name, r.email, " +
			"r.is_approved, r.is_rejected, r.moderated_at, r.created_at, r.updated_at, " +
			"n.name AS nursery_name, n.slug AS nursery_slug").
		Joins("JOIN nurseries AS n ON n.id = r.nursery_id")

	if params.HasStatus {
		approved, rejected := params.Status.Flags()
		query = query.Where("r.is_approved = ? AND r.is_rejected = ?", approved, rejected)
	}
	if params.AuthorID != nil {
		query = query.Where("r.author_id = ?", *params.AuthorID)
	}
	if params.Search != "" {
		op := dbpkg.LikeOperator(r.db)
		pattern := dbpkg.ContainsPattern(params.Search)
		query = query.Where(
			fmt.Sprintf("(r.first_name %[1]s ? ESCAPE '\\' OR r.last_name %[1]s ? ESCAPE '\\' OR r.email %[1]s ? ESCAPE '\\' OR n.name %[1]s ? ESCAPE '\\')", op),
			pattern, pattern, pattern, pattern,
		)
	}

	dir := "DESC"
	if params.Dir == enums.SortAsc {
		dir = "ASC"
	}
	var column string
	switch params.Sort {
	case enums.ReviewSortRating:
		column = "r.rating"
	case enums.ReviewSortNurseryName:
		column = "n.name"
	case enums.ReviewSortStatus:
		column = statusOrderExpr
	default:
		column = "r.created_at"
	}
	query = query.Order(column + " " + dir).Order("r.id ASC")

	var rows []reviewListRow
	err := query.Offset(params.Offset).Limit(params.Limit).Scan(&rows).Error
	return rows, err
}

// CountByStatus tallies reviews by moderation state.
func (r *Repository) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var row struct {
		Total    int64
		Approved int64
		Rejected int64
	}
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN is_approved THEN 1 ELSE 0 END), 0) AS approved, " +
			"COALESCE(SUM(CASE WHEN is_rejected THEN 1 ELSE 0 END), 0) AS rejected").
		Scan(&row).Error
	if err != nil {
		return StatusCounts{}, err
	}
	return StatusCounts{
		Pending:  row.Total - row.Approved - row.Rejected,
		Approved: row.Approved,
		Rejected: row.Rejected,
		Total:    row.Total,
	}, nil
}
