package models

import (
	"time"

	"github.com/anonto42/byteboard/internal/docstore"
)

// SavedPostsCollection holds one document per bookmarked (user, post).
const SavedPostsCollection = "SavedPosts"

// Field names of a saved-post document.
const (
	SaveFieldUserID    = "userId"
	SaveFieldPostID    = "id"
	SaveFieldOwnerID   = "postOwnerId"
	SaveFieldSaverName = "saverName"
	SaveFieldTimestamp = "timestamp"
)

// SavedPost represents a bookmarked/saved post by a user
type SavedPost struct {
	UserID      string    `json:"user_id"`
	PostID      string    `json:"post_id"`
	PostOwnerID string    `json:"post_owner_id,omitempty"`
	SaverName   string    `json:"saver_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Fields returns the document body. Owner and saver name are only written
// when known; without an owner the save is invisible to the owner's
// activity stream.
func (s SavedPost) Fields() map[string]any {
	fields := map[string]any{
		SaveFieldUserID:    s.UserID,
		SaveFieldPostID:    s.PostID,
		SaveFieldTimestamp: s.CreatedAt,
	}
	if s.PostOwnerID != "" {
		fields[SaveFieldOwnerID] = s.PostOwnerID
		fields[SaveFieldSaverName] = DisplayName(s.SaverName)
	}
	return fields
}

// SavedPostFromDocument decodes a saved-post document.
func SavedPostFromDocument(d docstore.Document) SavedPost {
	return SavedPost{
		UserID:      d.String(SaveFieldUserID),
		PostID:      d.String(SaveFieldPostID),
		PostOwnerID: d.String(SaveFieldOwnerID),
		SaverName:   d.String(SaveFieldSaverName),
		CreatedAt:   d.Time(SaveFieldTimestamp),
	}
}
