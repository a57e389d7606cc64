package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
)

// ProfileDirectory resolves post authors to display profiles and caches
// every profile it finds for the lifetime of the process. Misses are never
// cached, so an author who creates a profile later is picked up.
type ProfileDirectory struct {
	users  repositories.UserRepository
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]models.Profile
}

// NewProfileDirectory creates an empty directory.
func NewProfileDirectory(users repositories.UserRepository, logger *slog.Logger) *ProfileDirectory {
	return &ProfileDirectory{
		users:  users,
		logger: logger,
		cache:  make(map[string]models.Profile),
	}
}

const lookupTimeout = 10 * time.Second

type lookup struct {
	profile models.Profile
	found   bool
}

// Resolve returns the author's profile. Fields missing from the stored
// profile are filled from fallback; when the author has no profile or the
// read fails, fallback is returned unchanged.
func (d *ProfileDirectory) Resolve(ctx context.Context, authorID string, fallback models.Profile) models.Profile {
	if authorID == "" {
		return fallback
	}

	d.mu.RLock()
	p, ok := d.cache[authorID]
	d.mu.RUnlock()
	if ok {
		return p
	}

	// Concurrent misses share one read. The raw profile is resolved against
	// this caller's fallback afterwards, since callers may pass different ones.
	// The read outlives the caller that started it so a cancelled request
	// does not fail the others waiting on it.
	v, err, _ := d.group.Do(authorID, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		doc, found, err := d.users.GetUserDocument(readCtx, authorID)
		if err != nil || !found {
			return lookup{}, err
		}
		return lookup{profile: models.ProfileFromDocument(doc, models.Profile{}), found: true}, nil
	})
	if err != nil {
		d.logger.Warn("profile lookup failed", "author_id", authorID, "error", err)
		return fallback
	}
	res := v.(lookup)
	if !res.found {
		return fallback
	}

	resolved := fillProfile(res.profile, fallback)

	d.mu.Lock()
	if cached, ok := d.cache[authorID]; ok {
		d.mu.Unlock()
		return cached
	}
	d.cache[authorID] = resolved
	d.mu.Unlock()
	return resolved
}

// Cached reports whether a profile for authorID is in the cache.
func (d *ProfileDirectory) Cached(authorID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.cache[authorID]
	return ok
}

// Forget drops the cached profile so the next Resolve reads it again.
func (d *ProfileDirectory) Forget(authorID string) {
	d.mu.Lock()
	delete(d.cache, authorID)
	d.mu.Unlock()
}

func fillProfile(p, fallback models.Profile) models.Profile {
	if p.DisplayName == "" {
		p.DisplayName = fallback.DisplayName
	}
	if p.Handle == "" {
		p.Handle = fallback.Handle
	}
	if p.AvatarURL == "" {
		p.AvatarURL = fallback.AvatarURL
	}
	return p
}
