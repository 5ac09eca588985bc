package models

import (
	"time"

	"github.com/google/uuid"
)

// UserPreferences are the defaults pre-filled in the generation form
type UserPreferences struct {
	DefaultTone      Tone       `json:"defaultTone"`
	DefaultPlatforms []Platform `json:"defaultPlatforms"`
	DefaultHashtags  []string   `json:"defaultHashtags"`
}

// UserStats tracks generation activity
type UserStats struct {
	TotalGenerations int        `json:"totalGenerations"`
	LastGeneratedAt  *time.Time `json:"lastGeneratedAt,omitempty"`
}

// User represents a user authenticated via Google OAuth
type User struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	GoogleID    string          `json:"-" db:"google_id"`
	Email       string          `json:"email" db:"email"`
	Name        string          `json:"name" db:"name"`
	Picture     string          `json:"picture" db:"picture"`
	Preferences UserPreferences `json:"preferences" db:"preferences"`
	Stats       UserStats       `json:"stats" db:"stats"`
	LastLoginAt time.Time       `json:"lastLoginAt" db:"last_login_at"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// DefaultPreferences returns the preferences assigned to new users
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		DefaultTone:      ToneProfessional,
		DefaultPlatforms: []Platform{PlatformTwitter},
		DefaultHashtags:  []string{},
	}
}

// NewUser creates a new User instance from a Google profile
func NewUser(googleID, email, name, picture string) *User {
	now := time.Now().UTC()
	return &User{
		ID:          uuid.New(),
		GoogleID:    googleID,
		Email:       email,
		Name:        name,
		Picture:     picture,
		Preferences: DefaultPreferences(),
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// RecordLogin marks a successful sign-in
func (u *User) RecordLogin(now time.Time) {
	u.LastLoginAt = now
	u.UpdatedAt = now
}

// RecordGeneration bumps the generation counters
func (u *User) RecordGeneration(now time.Time) {
	u.Stats.TotalGenerations++
	u.Stats.LastGeneratedAt = &now
	u.UpdatedAt = now
}
