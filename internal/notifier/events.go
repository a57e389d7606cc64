package notifier

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/byteboard/internal/models"
)

// Titles and fixed bodies shown to the user.
const (
	LikeTitle      = "New Like"
	SaveTitle      = "Post Saved"
	MilestoneTitle = "Like Milestone"
	SelfTestTitle  = "Notifications Enabled"
	SelfTestBody   = "Test notification: app started."
	HintTitle      = "Enable Notifications"
	HintBody       = "Enable browser notifications in site settings to receive native alerts."
)

// Compliments open every milestone message.
var Compliments = []string{
	"Great work",
	"You are on fire",
	"People love your content",
	"Keep the momentum going",
	"Awesome consistency",
}

// complimenter draws compliments from a shared random source. Streams of
// different owners run on different goroutines, hence the lock.
type complimenter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (c *complimenter) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Compliments[c.rng.IntN(len(Compliments))]
}

func newEvent(kind models.NotificationKind, ownerID, title, body string, at time.Time) models.NotificationEvent {
	return models.NotificationEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		Title:         title,
		Body:          body,
		TargetOwnerID: ownerID,
		ObservedAt:    at,
	}
}

// LikeEvent builds the notification for a new like.
func LikeEvent(ownerID, relationID, likerName string, at time.Time) models.NotificationEvent {
	name := models.DisplayName(likerName)
	ev := newEvent(models.NotificationLike, ownerID, LikeTitle, fmt.Sprintf("%s liked your post.", name), at)
	ev.SubjectName = name
	ev.RelationID = relationID
	return ev
}

// SaveEvent builds the notification for a new save.
func SaveEvent(ownerID, relationID, saverName string, at time.Time) models.NotificationEvent {
	name := models.DisplayName(saverName)
	ev := newEvent(models.NotificationSave, ownerID, SaveTitle, fmt.Sprintf("%s saved your post.", name), at)
	ev.SubjectName = name
	ev.RelationID = relationID
	return ev
}

// MilestoneEvent builds the notification for a crossed like milestone.
func MilestoneEvent(ownerID string, total int, compliment string, at time.Time) models.NotificationEvent {
	body := fmt.Sprintf("%s! You now have %d total likes on your posts.", compliment, total)
	ev := newEvent(models.NotificationMilestone, ownerID, MilestoneTitle, body, at)
	ev.Total = total
	return ev
}

// SelfTestEvent is sent once per session to exercise the delivery path.
func SelfTestEvent(ownerID string, at time.Time) models.NotificationEvent {
	return newEvent(models.NotificationSystem, ownerID, SelfTestTitle, SelfTestBody, at)
}

// HintEvent asks the user to allow native notifications.
func HintEvent(ownerID string, at time.Time) models.NotificationEvent {
	return newEvent(models.NotificationSystem, ownerID, HintTitle, HintBody, at)
}
