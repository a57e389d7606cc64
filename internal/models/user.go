package models

import (
	"strings"
	"time"

	"github.com/anonto42/byteboard/internal/docstore"
)

// UsersCollection holds one profile document per Firebase UID.
const UsersCollection = "users"

// Field names of a user profile document.
const (
	UserFieldUID         = "uid"
	UserFieldEmail       = "email"
	UserFieldEmailLower  = "emailLower"
	UserFieldName        = "name"
	UserFieldHandle      = "handle"
	UserFieldHandleLower = "handleLower"
	UserFieldPhotoURL    = "photoURL"
	UserFieldAge         = "age"
	UserFieldCreatedAt   = "createdAt"
)

// DefaultAvatarURL is shown for authors without a profile photo.
const DefaultAvatarURL = "https://i.pravatar.cc/80?img=8"

// Profile is the author information rendered next to a post.
type Profile struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatar_url"`
}

// ProfileFromDocument decodes the display fields of a user document,
// replacing each missing field with the fallback's.
func ProfileFromDocument(d docstore.Document, fallback Profile) Profile {
	p := Profile{
		DisplayName: d.String(UserFieldName),
		Handle:      d.String(UserFieldHandle),
		AvatarURL:   d.String(UserFieldPhotoURL),
	}
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

// User is a stored user profile.
type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Handle      string    `json:"handle"` // with leading "@"
	HandleLower string    `json:"-"`      // without "@", used for uniqueness
	Age         int       `json:"age,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Fields returns the document body for the user.
func (u User) Fields() map[string]any {
	fields := map[string]any{
		UserFieldUID:         u.UID,
		UserFieldEmail:       u.Email,
		UserFieldEmailLower:  strings.ToLower(u.Email),
		UserFieldName:        u.Name,
		UserFieldHandle:      u.Handle,
		UserFieldHandleLower: u.HandleLower,
		UserFieldCreatedAt:   u.CreatedAt,
	}
	if u.Age > 0 {
		fields[UserFieldAge] = u.Age
	} else {
		fields[UserFieldAge] = nil
	}
	if u.PhotoURL != "" {
		fields[UserFieldPhotoURL] = u.PhotoURL
	}
	return fields
}

// SignupRequest defines the request body for email sign-up
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"omitempty,max=50"`
	Handle   string `json:"handle" validate:"required,handle"`
	Age      int    `json:"age" validate:"required,min=13,max=120"`
}

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}
