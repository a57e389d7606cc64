package kv

import (
	"fmt"
	"strings"
)

const (
	milestoneKeyPrefix = "likes-milestone-notified:"
	pushTokenKeyPrefix = "push-token:"
	themeKeyPrefix     = "theme:"
)

// Theme values accepted by the settings page.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// MilestoneCursors persists the highest like milestone already announced
// to each owner.
type MilestoneCursors struct {
	store *Store
}

// NewMilestoneCursors creates a cursor view over store.
func NewMilestoneCursors(store *Store) *MilestoneCursors {
	return &MilestoneCursors{store: store}
}

// Load returns the owner's watermark. The bool is false when none was ever
// written, which is different from a stored zero.
func (c *MilestoneCursors) Load(ownerID string) (int, bool, error) {
	return c.store.GetInt(milestoneKeyPrefix + ownerID)
}

// Save stores the owner's watermark.
func (c *MilestoneCursors) Save(ownerID string, milestone int) error {
	return c.store.SetInt(milestoneKeyPrefix+ownerID, milestone)
}

// PushTokens records the native push token each user registered. A stored
// token is what "native notification permission granted" means here.
type PushTokens struct {
	store *Store
}

// NewPushTokens creates a token view over store.
func NewPushTokens(store *Store) *PushTokens {
	return &PushTokens{store: store}
}

// Register stores the user's token, replacing any previous one.
func (p *PushTokens) Register(userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("push token is empty")
	}
	return p.store.Set(pushTokenKeyPrefix+userID, token)
}

// Revoke forgets the user's token.
func (p *PushTokens) Revoke(userID string) error {
	return p.store.Delete(pushTokenKeyPrefix + userID)
}

// Token returns the user's token, if any.
func (p *PushTokens) Token(userID string) (string, bool, error) {
	return p.store.Get(pushTokenKeyPrefix + userID)
}

// Preferences holds per-user UI preferences.
type Preferences struct {
	store *Store
}

// NewPreferences creates a preferences view over store.
func NewPreferences(store *Store) *Preferences {
	return &Preferences{store: store}
}

// Theme returns the user's theme, light when unset.
func (p *Preferences) Theme(userID string) (string, error) {
	theme, ok, err := p.store.Get(themeKeyPrefix + userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return ThemeLight, nil
	}
	return theme, nil
}

// SetTheme stores the user's theme.
func (p *Preferences) SetTheme(userID, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return p.store.Set(themeKeyPrefix+userID, theme)
}
