package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
)

// Publisher pushes a notification to the user's open connections.
// *realtime.Hub implements it.
type Publisher interface {
	Publish(userID string, n *models.Notification)
}

// InAppChannel stores events in the user's inbox and pushes them to any
// open websocket. Either part may be nil.
type InAppChannel struct {
	inbox  repositories.NotificationRepository
	hub    Publisher
	logger *slog.Logger
}

// NewInAppChannel creates an in-app channel.
func NewInAppChannel(inbox repositories.NotificationRepository, hub Publisher, logger *slog.Logger) *InAppChannel {
	return &InAppChannel{inbox: inbox, hub: hub, logger: logger}
}

func (c *InAppChannel) Name() string { return "in-app" }

// Send implements Channel. System events are transient and skip the inbox.
func (c *InAppChannel) Send(_ context.Context, ev models.NotificationEvent) error {
	n := models.NotificationFromEvent(ev)
	if c.inbox != nil && ev.Kind != models.NotificationSystem {
		if err := c.inbox.CreateNotification(n); err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
	}
	if c.hub != nil {
		c.hub.Publish(ev.TargetOwnerID, n)
	}
	return nil
}
