package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	apperrors "github.com/anonto42/byteboard/internal/errors"
)

// Identities manages Firebase Authentication users for the account service.
type Identities struct {
	client *auth.Client
}

// NewIdentities wraps an auth client.
func NewIdentities(client *auth.Client) *Identities {
	return &Identities{client: client}
}

// CreateUser registers an email/password user and returns its UID.
func (i *Identities) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}

	record, err := i.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", apperrors.AlreadyExists("That email is already in use.")
		}
		return "", fmt.Errorf("create firebase user: %w", err)
	}
	return record.UID, nil
}

// UpdateUser sets the display name and, when given, the photo URL.
func (i *Identities) UpdateUser(ctx context.Context, uid, displayName, photoURL string) error {
	params := (&auth.UserToUpdate{}).DisplayName(displayName)
	if photoURL != "" {
		params = params.PhotoURL(photoURL)
	}
	if _, err := i.client.UpdateUser(ctx, uid, params); err != nil {
		if auth.IsUserNotFound(err) {
			return apperrors.NotFound("user not found")
		}
		return fmt.Errorf("update firebase user: %w", err)
	}
	return nil
}

// DeleteUser removes the identity.
func (i *Identities) DeleteUser(ctx context.Context, uid string) error {
	if err := i.client.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("delete firebase user: %w", err)
	}
	return nil
}
