package enums

import (
	"fmt"
	"strings"
)

// ReviewStatus is the moderation state of a review. Storage keeps two boolean
// columns; everything above the repository works with this tagged value.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

var validReviewStatuses = []ReviewStatus{
	ReviewStatusPending,
	ReviewStatusApproved,
	ReviewStatusRejected,
}

func (s ReviewStatus) String() string {
	return string(s)
}

func (s ReviewStatus) IsValid() bool {
	for _, candidate := range validReviewStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Counted reports whether a review in this state contributes to a nursery's review count.
func (s ReviewStatus) Counted() bool {
	return s == ReviewStatusApproved
}

// Flags returns the persisted (is_approved, is_rejected) pair. The pair is
// never (true, true).
func (s ReviewStatus) Flags() (approved bool, rejected bool) {
	switch s {
	case ReviewStatusApproved:
		return true, false
	case ReviewStatusRejected:
		return false, true
	default:
		return false, false
	}
}

// ReviewStatusFromFlags collapses the persisted flag pair. A row carrying both
// flags is reported as an error instead of being guessed at.
func ReviewStatusFromFlags(approved, rejected bool) (ReviewStatus, error) {
	switch {
	case approved && rejected:
		return "", fmt.Errorf("review flags are both set")
	case approved:
		return ReviewStatusApproved, nil
	case rejected:
		return ReviewStatusRejected, nil
	default:
		return ReviewStatusPending, nil
	}
}

func ParseReviewStatus(value string) (ReviewStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validReviewStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review status %q", value)
}

// ReviewFilter narrows review listings by status.
type ReviewFilter string

const (
	ReviewFilterAll      ReviewFilter = "all"
	ReviewFilterApproved ReviewFilter = "approved"
	ReviewFilterPending  ReviewFilter = "pending"
	ReviewFilterRejected ReviewFilter = "rejected"
)

var validReviewFilters = []ReviewFilter{
	ReviewFilterAll,
	ReviewFilterApproved,
	ReviewFilterPending,
	ReviewFilterRejected,
}

func (f ReviewFilter) IsValid() bool {
	for _, candidate := range validReviewFilters {
		if candidate == f {
			return true
		}
	}
	return false
}

// Status returns the single status selected by the filter, or false for "all".
func (f ReviewFilter) Status() (ReviewStatus, bool) {
	if f == ReviewFilterAll || f == "" {
		return "", false
	}
	return ReviewStatus(f), true
}

// ParseReviewFilter treats a blank value as "all".
func ParseReviewFilter(value string) (ReviewFilter, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ReviewFilterAll, nil
	}
	for _, candidate := range validReviewFilters {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review filter %q", value)
}

// ReviewSortField names the columns reviews can be ordered by.
type ReviewSortField string

const (
	ReviewSortCreatedAt   ReviewSortField = "created_at"
	ReviewSortRating      ReviewSortField = "rating"
	ReviewSortNurseryName ReviewSortField = "nursery_name"
	ReviewSortStatus      ReviewSortField = "status"
)

var validReviewSortFields = []ReviewSortField{
	ReviewSortCreatedAt,
	ReviewSortRating,
	ReviewSortNurseryName,
	ReviewSortStatus,
}

func (f ReviewSortField) IsValid() bool {
	for _, candidate := range validReviewSortFields {
		if candidate == f {
			return true
		}
	}
	return false
}

func ParseReviewSortField(value string) (ReviewSortField, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ReviewSortCreatedAt, nil
	}
	for _, candidate := range validReviewSortFields {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sort field %q", value)
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func ParseSortDirection(value string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return SortDesc, nil
	case string(SortAsc):
		return SortAsc, nil
	case string(SortDesc):
		return SortDesc, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", value)
}
