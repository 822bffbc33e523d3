package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is the persisted row. The two moderation flags are the storage format;
// a CHECK constraint keeps them from both being true.
type Review struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	NurseryID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	AuthorID    *uuid.UUID `gorm:"type:uuid;index"`
	Rating      int        `gorm:"not null"`
	Title       string     `gorm:"not null"`
	Content     string     `gorm:"type:text;not null"`
	FirstName   string     `gorm:"not null"`
	LastName    string     `gorm:"not null"`
	Email       string     `gorm:"not null"`
	IsApproved  bool       `gorm:"column:is_approved;not null;default:false"`
	IsRejected  bool       `gorm:"column:is_rejected;not null;default:false"`
	ModeratedAt *time.Time `gorm:"column:moderated_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}
