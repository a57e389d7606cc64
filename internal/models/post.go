package models

import (
	"time"

	"github.com/anonto42/byteboard/internal/docstore"
)

// PostsCollection holds the posts themselves.
const PostsCollection = "posts"

// Field names of a post document.
const (
	PostFieldAuthID     = "authId"
	PostFieldUsername   = "username"
	PostFieldHandle     = "handle"
	PostFieldText       = "text"
	PostFieldCode       = "code"
	PostFieldImage      = "image"
	PostFieldLikesCount = "LikesCount"
	PostFieldTimestamp  = "timestamp"
)

// Post represents a text/code snippet post
type Post struct {
	ID         string    `json:"id"`
	AuthID     string    `json:"auth_id"`  // Firebase UID of the author
	Username   string    `json:"username"` // denormalised at creation, used as profile fallback
	Handle     string    `json:"handle"`
	Text       string    `json:"text"`
	Code       string    `json:"code,omitempty"`
	Image      string    `json:"image,omitempty"`
	LikesCount int64     `json:"likes_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// DisplayLikes is the like count as shown to users. The stored counter is
// best-effort and may drift below zero; it is never displayed that way.
func (p Post) DisplayLikes() int64 {
	return max(p.LikesCount, 0)
}

// AuthorFallback is the denormalised author profile carried on the post.
func (p Post) AuthorFallback() Profile {
	return Profile{
		DisplayName: p.Username,
		Handle:      p.Handle,
		AvatarURL:   DefaultAvatarURL,
	}
}

// PostFromDocument decodes a post document.
func PostFromDocument(d docstore.Document) Post {
	return Post{
		ID:         d.ID,
		AuthID:     d.String(PostFieldAuthID),
		Username:   d.String(PostFieldUsername),
		Handle:     d.String(PostFieldHandle),
		Text:       d.String(PostFieldText),
		Code:       d.String(PostFieldCode),
		Image:      d.String(PostFieldImage),
		LikesCount: d.Int(PostFieldLikesCount),
		CreatedAt:  d.Time(PostFieldTimestamp),
	}
}
