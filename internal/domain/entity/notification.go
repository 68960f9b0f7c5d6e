package entity

import "time"

// NotificationType is the closed set of notification kinds
type NotificationType string

const (
	NotificationNewRequest       NotificationType = "new_request"
	NotificationRequestApproved  NotificationType = "request_approved"
	NotificationRequestRejected  NotificationType = "request_rejected"
	NotificationCorrectionNeeded NotificationType = "correction_needed"
	NotificationSLAWarning       NotificationType = "sla_warning"
	NotificationSLAOverdue       NotificationType = "sla_overdue"
	NotificationBulkApproved     NotificationType = "bulk_approved"
	NotificationBulkRejected     NotificationType = "bulk_rejected"
	NotificationSystemAlert      NotificationType = "system_alert"
	NotificationInfo             NotificationType = "info"
)

// DefaultNotificationTTL is how long a notification is kept before it becomes eligible for removal
const DefaultNotificationTTL = 30 * 24 * time.Hour

// DefaultArchiveKeep is the number of most recent notifications kept by Archive
const DefaultArchiveKeep = 100

// IsValid returns true if the type is one of the defined constants
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationNewRequest,
		NotificationRequestApproved,
		NotificationRequestRejected,
		NotificationCorrectionNeeded,
		NotificationSLAWarning,
		NotificationSLAOverdue,
		NotificationBulkApproved,
		NotificationBulkRejected,
		NotificationSystemAlert,
		NotificationInfo:
		return true
	default:
		return false
	}
}

// String returns the string representation of the type
func (t NotificationType) String() string {
	return string(t)
}

// Notification is a one-way message to a single user about a request event
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	RequestID string           `json:"requestId,omitempty"`
	Priority  string           `json:"priority"`
	Read      bool             `json:"read"`
	Delivered bool             `json:"delivered"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// NotificationTypeForStatus picks the notification sent to a submitter when
// their request reaches status
func NotificationTypeForStatus(status string) NotificationType {
	switch status {
	case StatusApproved:
		return NotificationRequestApproved
	case StatusRejected:
		return NotificationRequestRejected
	case StatusNeedsCorrection:
		return NotificationCorrectionNeeded
	default:
		return NotificationInfo
	}
}
