package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anonto42/byteboard/internal/models"
)

// Channel delivers an event to the user.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev models.NotificationEvent) error
}

// PermissionChecker reports whether the user currently accepts native
// notifications.
type PermissionChecker interface {
	NativeGranted(ctx context.Context, userID string) bool
}

// Dispatcher routes each event to the native channel when the owner has
// granted permission and to the in-app channel otherwise. Permission is
// asked for every event.
type Dispatcher struct {
	native Channel
	inApp  Channel
	perms  PermissionChecker
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. native may be nil, in which case
// every event goes in-app.
func NewDispatcher(native, inApp Channel, perms PermissionChecker, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		native: native,
		inApp:  inApp,
		perms:  perms,
		logger: logger,
	}
}

// Deliver implements Deliverer. A failed native send falls back to the
// in-app channel.
func (d *Dispatcher) Deliver(ctx context.Context, ev models.NotificationEvent) error {
	if d.NativeGranted(ctx, ev.TargetOwnerID) {
		err := d.native.Send(ctx, ev)
		if err == nil {
			d.logger.Debug("notification delivered", "channel", d.native.Name(), "kind", ev.Kind, "owner_id", ev.TargetOwnerID)
			return nil
		}
		d.logger.Warn("native delivery failed, using in-app channel",
			"owner_id", ev.TargetOwnerID,
			"kind", ev.Kind,
			"error", err,
		)
	}

	if err := d.inApp.Send(ctx, ev); err != nil {
		return fmt.Errorf("%s delivery: %w", d.inApp.Name(), err)
	}
	d.logger.Debug("notification delivered", "channel", d.inApp.Name(), "kind", ev.Kind, "owner_id", ev.TargetOwnerID)
	return nil
}

// NativeGranted reports whether events for userID would use the native channel.
func (d *Dispatcher) NativeGranted(ctx context.Context, userID string) bool {
	return d.native != nil && d.perms != nil && d.perms.NativeGranted(ctx, userID)
}
