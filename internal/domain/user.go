package domain

import "time"

// Theme is the UI theme stored on the profile
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

type ProfilePreferences struct {
	Theme         Theme `db:"theme" json:"theme"`
	Notifications bool  `db:"notifications" json:"notifications"`
}

// DefaultPreferences are applied to freshly bootstrapped profiles
func DefaultPreferences() ProfilePreferences {
	return ProfilePreferences{Theme: ThemeDark, Notifications: true}
}

// UserProfile is the per-user document. Stardust is a denormalized copy of
// the transaction log sum and only the ledger changes it.
type UserProfile struct {
	ID          string             `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	Email       string             `db:"email" json:"email"`
	Stardust    int64              `db:"stardust" json:"stardust"`
	Preferences ProfilePreferences `json:"preferences"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	LastLoginAt time.Time          `db:"last_login_at" json:"last_login_at"`
}

// Identity is what the identity provider vouches for
type Identity struct {
	UID   string
	Email string
	Name  string
}

// ProfileUpdate carries optional settings changes; nil fields are left alone
type ProfileUpdate struct {
	Name          *string `json:"name,omitempty"`
	Theme         *Theme  `json:"theme,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
}

// Apply overlays the update on p
func (u ProfileUpdate) Apply(p *UserProfile) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Theme != nil {
		p.Preferences.Theme = *u.Theme
	}
	if u.Notifications != nil {
		p.Preferences.Notifications = *u.Notifications
	}
}
