package models

import (
	"strings"
	"time"

	"github.com/anonto42/byteboard/internal/docstore"
)

// LikesCollection holds one document per (user, post) like. The document
// existing IS the liked state; unliking deletes it.
const LikesCollection = "Likes"

// Field names of a like document.
const (
	LikeFieldUserID    = "userId"
	LikeFieldPostID    = "postId"
	LikeFieldOwnerID   = "postOwnerId"
	LikeFieldLikerName = "likerName"
	LikeFieldTimestamp = "timestamp"
)

// AnonymousName replaces blank actor names in relations and notifications.
const AnonymousName = "Someone"

// Like represents one user's like on a post
type Like struct {
	UserID      string    `json:"user_id"`
	PostID      string    `json:"post_id"`
	PostOwnerID string    `json:"post_owner_id"` // denormalised for "likes on my posts" queries
	LikerName   string    `json:"liker_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// RelationID is the composite key shared by likes and saves. Being
// deterministic, it doubles as the uniqueness constraint.
func RelationID(userID, postID string) string {
	return userID + "_" + postID
}

// DisplayName normalises an actor name, falling back to AnonymousName.
func DisplayName(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return AnonymousName
}

// Fields returns the document body for the like.
func (l Like) Fields() map[string]any {
	return map[string]any{
		LikeFieldUserID:    l.UserID,
		LikeFieldPostID:    l.PostID,
		LikeFieldOwnerID:   l.PostOwnerID,
		LikeFieldLikerName: DisplayName(l.LikerName),
		LikeFieldTimestamp: l.CreatedAt,
	}
}

// LikeFromDocument decodes a like document.
func LikeFromDocument(d docstore.Document) Like {
	return Like{
		UserID:      d.String(LikeFieldUserID),
		PostID:      d.String(LikeFieldPostID),
		PostOwnerID: d.String(LikeFieldOwnerID),
		LikerName:   d.String(LikeFieldLikerName),
		CreatedAt:   d.Time(LikeFieldTimestamp),
	}
}
