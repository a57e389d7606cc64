package models

import "time"

// NotificationKind classifies an activity notification.
type NotificationKind string

const (
	NotificationLike      NotificationKind = "like"
	NotificationSave      NotificationKind = "save"
	NotificationMilestone NotificationKind = "milestone"
	NotificationSystem    NotificationKind = "system" // self-test and permission hints
)

// NotificationEvent is one user-facing notification on its way to a
// delivery channel. It is not persisted by the notifier itself.
type NotificationEvent struct {
	ID            string           `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Title         string           `json:"title"`
	Body          string           `json:"body"`
	SubjectName   string           `json:"subject_name,omitempty"`
	TargetOwnerID string           `json:"target_owner_id"`
	RelationID    string           `json:"relation_id,omitempty"`
	Total         int              `json:"total,omitempty"` // like total, milestone events only
	ObservedAt    time.Time        `json:"observed_at"`
}

// Notification is an in-app notification kept in the user's inbox (PostgreSQL)
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	EventID     string           `json:"event_id" gorm:"size:64;uniqueIndex"`
	Kind        NotificationKind `json:"kind" gorm:"size:20;index"` // like, save, milestone, system
	RecipientID string           `json:"recipient_id" gorm:"size:128;index"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	SubjectName string           `json:"subject_name"`
	Total       int              `json:"total"`
	IsRead      bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time        `json:"created_at" gorm:"index"`
}

// NotificationFromEvent converts a delivered event into an inbox row.
func NotificationFromEvent(ev NotificationEvent) *Notification {
	return &Notification{
		EventID:     ev.ID,
		Kind:        ev.Kind,
		RecipientID: ev.TargetOwnerID,
		Title:       ev.Title,
		Message:     ev.Body,
		SubjectName: ev.SubjectName,
		Total:       ev.Total,
		CreatedAt:   ev.ObservedAt,
	}
}
