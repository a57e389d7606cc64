package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"github.com/anonto42/byteboard/internal/models"
)

// ErrNoDevice is returned when the user has no registered push token.
var ErrNoDevice = errors.New("no push device registered")

// MessageSender sends one FCM message. *messaging.Client implements it.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// TokenStore looks up and revokes push tokens. *kv.PushTokens implements it.
type TokenStore interface {
	Token(userID string) (string, bool, error)
	Revoke(userID string) error
}

// PushChannel delivers events as native notifications through Firebase
// Cloud Messaging.
type PushChannel struct {
	sender MessageSender
	tokens TokenStore
	logger *slog.Logger
}

// NewPushChannel creates a push channel.
func NewPushChannel(sender MessageSender, tokens TokenStore, logger *slog.Logger) *PushChannel {
	return &PushChannel{sender: sender, tokens: tokens, logger: logger}
}

func (c *PushChannel) Name() string { return "push" }

// Send pushes ev to the owner's device. A token FCM reports as
// unregistered is revoked, which turns native delivery off for the owner.
func (c *PushChannel) Send(ctx context.Context, ev models.NotificationEvent) error {
	token, ok, err := c.tokens.Token(ev.TargetOwnerID)
	if err != nil {
		return fmt.Errorf("read push token: %w", err)
	}
	if !ok {
		return ErrNoDevice
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: ev.Title,
			Body:  ev.Body,
		},
		Data: map[string]string{
			"event_id": ev.ID,
			"kind":     string(ev.Kind),
		},
	}
	if ev.Total > 0 {
		msg.Data["total"] = strconv.Itoa(ev.Total)
	}

	id, err := c.sender.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) {
			c.logger.Info("push token unregistered, revoking", "user_id", ev.TargetOwnerID)
			if rerr := c.tokens.Revoke(ev.TargetOwnerID); rerr != nil {
				c.logger.Warn("failed to revoke push token", "user_id", ev.TargetOwnerID, "error", rerr)
			}
		}
		return fmt.Errorf("send push: %w", err)
	}

	c.logger.Debug("push sent", "user_id", ev.TargetOwnerID, "message_id", id)
	return nil
}

// TokenPermissions grants native delivery to users with a registered token.
type TokenPermissions struct {
	tokens TokenStore
	logger *slog.Logger
}

// NewTokenPermissions creates a permission checker over tokens.
func NewTokenPermissions(tokens TokenStore, logger *slog.Logger) *TokenPermissions {
	return &TokenPermissions{tokens: tokens, logger: logger}
}

// NativeGranted implements PermissionChecker.
func (p *TokenPermissions) NativeGranted(_ context.Context, userID string) bool {
	_, ok, err := p.tokens.Token(userID)
	if err != nil {
		p.logger.Warn("failed to read push token", "user_id", userID, "error", err)
		return false
	}
	return ok
}
