package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/anonto42/byteboard/internal/errors"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
)

// SaveState is the outcome of a save toggle.
type SaveState int

const (
	SaveFailed SaveState = iota
	Saved
	Unsaved
)

func (s SaveState) String() string {
	switch s {
	case Saved:
		return "saved"
	case Unsaved:
		return "unsaved"
	default:
		return "failed"
	}
}

// SavedSetObserver is told about every successful save toggle.
type SavedSetObserver interface {
	SavedChanged(userID, targetID string, saved bool)
}

// SaveService toggles bookmarks and keeps saved-set views current.
type SaveService struct {
	saves     repositories.SavedPostRepository
	observers []SavedSetObserver
	logger    *slog.Logger
	now       func() time.Time
}

// NewSaveService creates a new save service.
func NewSaveService(saves repositories.SavedPostRepository, logger *slog.Logger, observers ...SavedSetObserver) *SaveService {
	return &SaveService{
		saves:     saves,
		observers: observers,
		logger:    logger,
		now:       time.Now,
	}
}

// Toggle flips the user's bookmark on the target. ownerID and saverName
// are denormalised onto the relation so the owner's activity stream can
// see the save; both may be empty.
func (s *SaveService) Toggle(ctx context.Context, targetID, userID, ownerID, saverName string) (SaveState, error) {
	if strings.TrimSpace(targetID) == "" || strings.TrimSpace(userID) == "" {
		return SaveFailed, apperrors.Validation("target id and user id are required")
	}

	saved, err := s.saves.IsPostSaved(ctx, userID, targetID)
	if err != nil {
		return SaveFailed, apperrors.Unavailable(fmt.Errorf("check save: %w", err), "Could not update the bookmark. Please try again.")
	}

	state := Saved
	if saved {
		if err := s.saves.UnsavePost(ctx, userID, targetID); err != nil {
			return SaveFailed, apperrors.Unavailable(fmt.Errorf("delete save: %w", err), "Could not update the bookmark. Please try again.")
		}
		state = Unsaved
	} else {
		rel := &models.SavedPost{
			UserID:      userID,
			PostID:      targetID,
			PostOwnerID: ownerID,
			SaverName:   saverName,
			CreatedAt:   s.now(),
		}
		if err := s.saves.SavePost(ctx, rel); err != nil {
			return SaveFailed, apperrors.Unavailable(fmt.Errorf("create save: %w", err), "Could not update the bookmark. Please try again.")
		}
	}

	s.logger.Debug("save toggled", "post_id", targetID, "user_id", userID, "state", state)

	for _, o := range s.observers {
		o.SavedChanged(userID, targetID, state == Saved)
	}
	return state, nil
}

// IsSaved reports whether the user has bookmarked the target.
func (s *SaveService) IsSaved(ctx context.Context, targetID, userID string) (bool, error) {
	if targetID == "" || userID == "" {
		return false, apperrors.Validation("target id and user id are required")
	}
	return s.saves.IsPostSaved(ctx, userID, targetID)
}

// SavedSet is a per-user view of saved target ids. Each user's set is read
// from the store once and afterwards maintained through SavedChanged.
type SavedSet struct {
	saves repositories.SavedPostRepository

	mu    sync.RWMutex
	users map[string]map[string]struct{}
}

// NewSavedSet creates an empty saved-set view.
func NewSavedSet(saves repositories.SavedPostRepository) *SavedSet {
	return &SavedSet{
		saves: saves,
		users: make(map[string]map[string]struct{}),
	}
}

// Load seeds the user's set from the store unless it is already loaded.
func (s *SavedSet) Load(ctx context.Context, userID string) error {
	s.mu.RLock()
	_, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return nil
	}

	ids, err := s.saves.GetSavedPostIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("load saved posts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; ok {
		// Loaded concurrently.
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.users[userID] = set
	return nil
}

// Contains reports whether targetID is in the user's loaded set.
func (s *SavedSet) Contains(userID, targetID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID][targetID]
	return ok
}

// IDs returns the user's saved ids, sorted.
func (s *SavedSet) IDs(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.users[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SavedChanged implements SavedSetObserver. Users whose set was never
// loaded are ignored; their first Load reads the store.
func (s *SavedSet) SavedChanged(userID, targetID string, saved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.users[userID]
	if !ok {
		return
	}
	if saved {
		set[targetID] = struct{}{}
	} else {
		delete(set, targetID)
	}
}

// SavedIDs returns the user's saved target ids, loading them on first use.
func (s *SavedSet) SavedIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	if err := s.Load(ctx, userID); err != nil {
		return nil, err
	}
	return s.IDs(userID), nil
}
