package notification

import (
	"fmt"
	"time"
)

// EventType is the server-assigned notification kind. Unrecognized values
// are carried as-is and rendered generically; they must never fail.
type EventType string

const (
	EventWaitlisted       EventType = "WAITLISTED"
	EventVacancyAvailable EventType = "VACANCY_AVAILABLE"
)

// Notification is one per-principal event record, pushed or fetched from the
// notification service. The only client-side mutation ever applied is
// setting ReadAt from the server's authoritative mark-read response.
type Notification struct {
	NotificationID int64  `json:"notificationId"`
	StudentFullID  string `json:"studentFullId,omitempty"`
	UserID         int64  `json:"userId,omitempty"`
	StudentID      int64  `json:"studentId,omitempty"`

	// subject refs; required only for types that render an action
	// (a VACANCY_AVAILABLE "Register" action needs ClassID)
	ClassID    int64  `json:"classId,omitempty"`
	CourseCode string `json:"courseCode,omitempty"`
	CourseName string `json:"courseName,omitempty"`

	EventType EventType `json:"eventType,omitempty"`

	Content             string `json:"content,omitempty"`
	NotificationMessage string `json:"notificationMessage,omitempty"`

	CreatedAt string  `json:"createdAt,omitempty"`
	SentAt    string  `json:"sentAt,omitempty"`
	ReadAt    *string `json:"readAt,omitempty"`
}

func (n Notification) Read() bool {
	return n.ReadAt != nil && *n.ReadAt != ""
}

// Message renders the user-facing notification text: the server-provided
// message when present, otherwise one generated from the event type.
func (n Notification) Message() string {
	if n.NotificationMessage != "" {
		return n.NotificationMessage
	}
	if n.Content != "" {
		return n.Content
	}

	courseName := n.CourseName
	if courseName == "" {
		courseName = "a course"
	}
	switch n.EventType {
	case EventWaitlisted:
		return fmt.Sprintf("You have been waitlisted for %s (%s)", courseName, n.CourseCode)
	case EventVacancyAvailable:
		return fmt.Sprintf("A vacancy is now available in %s (%s). Register now!", courseName, n.CourseCode)
	default:
		return fmt.Sprintf("New notification for %s", courseName)
	}
}

// Alert is a transient toast-style message emitted when a push delivery
// lands; surfaces drain them via Channel.Alerts.
type Alert struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}
