package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// Notification is a global moderation feed entry. EntityType/EntityID form a
// weak reference; there is no foreign key.
type Notification struct {
	ID         uuid.UUID                    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title      string                       `gorm:"type:text;not null"`
	Message    string                       `gorm:"type:text;not null"`
	EntityType enums.NotificationEntityType `gorm:"column:entity_type;type:text;not null"`
	EntityID   uuid.UUID                    `gorm:"column:entity_id;type:uuid;not null"`
	IsRead     bool                         `gorm:"column:is_read;not null;default:false"`
	ReadAt     *time.Time                   `gorm:"column:read_at"`
	CreatedAt  time.Time                    `gorm:"autoCreateTime"`
}
