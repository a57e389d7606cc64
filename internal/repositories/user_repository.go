package repositories

import (
	"context"
	"strings"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/internal/models"
)

// UserRepository defines the interface for user profile operations
type UserRepository interface {
	GetUserDocument(ctx context.Context, uid string) (docstore.Document, bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, uid string, fields map[string]any) error
	EmailTaken(ctx context.Context, email string) (bool, error)
	HandleTaken(ctx context.Context, handleLower string) (bool, error)
}

// DocUserRepository implements UserRepository on the document store
type DocUserRepository struct {
	store docstore.Store
}

// NewDocUserRepository creates a new DocUserRepository
func NewDocUserRepository(store docstore.Store) *DocUserRepository {
	return &DocUserRepository{store: store}
}

// GetUserDocument reads the raw profile document by Firebase UID
func (r *DocUserRepository) GetUserDocument(ctx context.Context, uid string) (docstore.Document, bool, error) {
	return r.store.Get(ctx, models.UsersCollection, uid)
}

// CreateUser writes the profile document keyed by UID
func (r *DocUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.store.Set(ctx, models.UsersCollection, user.UID, user.Fields(), false)
}

// UpdateUser merges the given fields into the profile document
func (r *DocUserRepository) UpdateUser(ctx context.Context, uid string, fields map[string]any) error {
	return r.store.Set(ctx, models.UsersCollection, uid, fields, true)
}

// EmailTaken reports whether any profile uses the email (case-insensitive)
func (r *DocUserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.any(ctx, models.UserFieldEmailLower, strings.ToLower(strings.TrimSpace(email)))
}

// HandleTaken reports whether any profile uses the normalised handle
func (r *DocUserRepository) HandleTaken(ctx context.Context, handleLower string) (bool, error) {
	return r.any(ctx, models.UserFieldHandleLower, handleLower)
}

func (r *DocUserRepository) any(ctx context.Context, field, value string) (bool, error) {
	docs, err := r.store.Query(ctx, models.UsersCollection, docstore.Where(field, value))
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}
