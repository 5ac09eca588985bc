package posts

import (
	"time"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/models"
)

// GenerateInput is a validated generation request from an authenticated user
type GenerateInput struct {
	UserID    uuid.UUID
	URL       string
	Tone      models.Tone
	Platforms []models.Platform
	Hashtags  []string
	CTA       string
}

// SourceInfo identifies the article a generation was made from
type SourceInfo struct {
	URL    string `json:"url"`
	Site   string `json:"site"`
	Author string `json:"author,omitempty"`
}

// GenerateResult is returned to the client after a generation
type GenerateResult struct {
	// ID is empty when the post was not saved to history
	ID             string                `json:"id,omitempty"`
	Title          string                `json:"title"`
	Source         SourceInfo            `json:"source"`
	Summary        string                `json:"summary"`
	Posts          models.GeneratedPosts `json:"posts"`
	Model          string                `json:"model"`
	SavedToHistory bool                  `json:"savedToHistory"`
}

// ListInput selects a page of a user's history
type ListInput struct {
	UserID        uuid.UUID
	Page          int
	Limit         int
	FavoritedOnly bool
}

// Pagination describes the page returned by List
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ListResult is one page of history
type ListResult struct {
	Posts      []*models.Post `json:"posts"`
	Pagination Pagination     `json:"pagination"`
}

// FavoriteResult reports the favorite state after a toggle
type FavoriteResult struct {
	Favorited   bool       `json:"favorited"`
	FavoritedAt *time.Time `json:"favoritedAt,omitempty"`
}
