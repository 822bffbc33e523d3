package enums

import "fmt"

// NotificationEntityType names the kind of object a notification points at.
type NotificationEntityType string

const (
	NotificationEntityReview  NotificationEntityType = "REVIEW"
	NotificationEntityNursery NotificationEntityType = "NURSERY"
	NotificationEntityUser    NotificationEntityType = "USER"
)

var validNotificationEntityTypes = []NotificationEntityType{
	NotificationEntityReview,
	NotificationEntityNursery,
	NotificationEntityUser,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationEntityType) IsValid() bool {
	for _, candidate := range validNotificationEntityTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationEntityType converts raw strings into NotificationEntityType.
func ParseNotificationEntityType(value string) (NotificationEntityType, error) {
	for _, candidate := range validNotificationEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification entity type %q", value)
}
