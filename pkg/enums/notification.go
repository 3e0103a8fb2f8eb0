package enums

import "fmt"

// NotificationKind categorizes in-app notifications.
type NotificationKind string

const (
	NotificationKindOrder  NotificationKind = "order"
	NotificationKindStock  NotificationKind = "stock"
	NotificationKindSystem NotificationKind = "system"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindOrder,
	NotificationKindStock,
	NotificationKindSystem,
}

func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}

// NotificationPriority orders how prominently a notification is surfaced.
type NotificationPriority string

const (
	NotificationPriorityCritical NotificationPriority = "critical"
	NotificationPriorityMedium   NotificationPriority = "medium"
	NotificationPriorityLow      NotificationPriority = "low"
)

var validNotificationPriorities = []NotificationPriority{
	NotificationPriorityCritical,
	NotificationPriorityMedium,
	NotificationPriorityLow,
}

func (p NotificationPriority) IsValid() bool {
	for _, candidate := range validNotificationPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParseNotificationPriority(value string) (NotificationPriority, error) {
	for _, candidate := range validNotificationPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification priority %q", value)
}
