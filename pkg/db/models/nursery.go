package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Nursery is a single childcare listing. ReviewCount caches the number of
// approved reviews and is maintained by moderation and the reconcile job.
type Nursery struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string         `gorm:"not null"`
	Slug        string         `gorm:"not null;uniqueIndex"`
	OwnerID     uuid.UUID      `gorm:"type:uuid;not null"`
	GroupID     *uuid.UUID     `gorm:"type:uuid"`
	Group       *Group         `gorm:"foreignKey:GroupID"`
	IsApproved  bool           `gorm:"column:is_approved;not null;default:false"`
	IsVerified  bool           `gorm:"column:is_verified;not null;default:false"`
	ReviewCount int            `gorm:"column:review_count;not null;default:0"`
	Town        string         `gorm:"not null;default:''"`
	Postcode    string         `gorm:"not null;default:''"`
	Description *string        `gorm:"type:text"`
	AgeGroups   pq.StringArray `gorm:"column:age_groups;type:text[]"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}
