package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/middleware"
	"github.com/anonto42/byteboard/internal/notifier"
	"github.com/anonto42/byteboard/internal/realtime"
	"github.com/anonto42/byteboard/internal/repositories"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository // nil when no inbox is configured
	hub                    *realtime.Hub
	sessions               *notifier.Manager
	logger                 *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, hub *realtime.Hub, sessions *notifier.Manager, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		hub:                    hub,
		sessions:               sessions,
		logger:                 logger,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.GET("/notifications/stream", h.Stream)
}

func (h *NotificationHandler) inbox() (repositories.NotificationRepository, error) {
	if h.notificationRepository == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "Notification inbox is not configured")
	}
	return h.notificationRepository, nil
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	inbox, err := h.inbox()
	if err != nil {
		return err
	}
	page, limit := pageParams(c, 20)

	notifications, total, err := inbox.GetByRecipientID(middleware.UID(c), page, limit)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": pageMeta(page, limit, total),
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	inbox, err := h.inbox()
	if err != nil {
		return err
	}
	uid := middleware.UID(c)

	today, yesterday, thisWeek, older, err := inbox.GetGrouped(uid)
	if err != nil {
		return httpError(err)
	}

	unreadCount, err := inbox.GetUnreadCount(uid)
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{
		"notifications": echo.Map{
			"today":     today,
			"yesterday": yesterday,
			"thisWeek":  thisWeek,
			"older":     older,
		},
		"unreadCount": unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	inbox, err := h.inbox()
	if err != nil {
		return err
	}

	count, err := inbox.GetUnreadCount(middleware.UID(c))
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"count": count})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	inbox, err := h.inbox()
	if err != nil {
		return err
	}

	notifID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	if err := inbox.MarkAsRead(middleware.UID(c), uint(notifID)); err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"success": true})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	inbox, err := h.inbox()
	if err != nil {
		return err
	}

	if err := inbox.MarkAllAsRead(middleware.UID(c)); err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"success": true})
}

// Stream upgrades to a websocket that receives the user's in-app
// notifications while it stays open. Each open stream is one notifier
// session.
func (h *NotificationHandler) Stream(c echo.Context) error {
	uid := middleware.UID(c)

	client := h.hub.Register(uid)
	defer h.hub.Unregister(client)

	if err := h.sessions.Acquire(uid); err != nil {
		return httpError(err)
	}
	defer h.sessions.Release(uid)

	if err := h.hub.Serve(c.Response(), c.Request(), client); err != nil {
		// The upgrader has already written the error response.
		h.logger.Debug("websocket upgrade failed", "user_id", uid, "error", err)
	}
	return nil
}
