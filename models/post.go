package models

import (
	"time"

	"github.com/google/uuid"
)

// ArticleSource identifies where an article came from
type ArticleSource struct {
	Site   string `json:"site"`
	Author string `json:"author,omitempty"`
}

// ArticleSnapshot is the part of the article kept in history
type ArticleSnapshot struct {
	URL     string        `json:"url"`
	Title   string        `json:"title"`
	Source  ArticleSource `json:"source"`
	Summary string        `json:"summary"`
}

// GenerationParameters records what the user asked for
type GenerationParameters struct {
	Tone      Tone       `json:"tone"`
	Platforms []Platform `json:"platforms"`
	Hashtags  []string   `json:"hashtags"`
	CTA       string     `json:"cta,omitempty"`
}

// CopyEvent records a copy-to-clipboard of one platform's post
type CopyEvent struct {
	Platform Platform  `json:"platform"`
	CopiedAt time.Time `json:"copiedAt"`
}

// Interactions tracks what the user did with a post
type Interactions struct {
	Copied      []CopyEvent `json:"copied"`
	Favorited   bool        `json:"favorited"`
	FavoritedAt *time.Time  `json:"favoritedAt,omitempty"`
}

// Post is one saved generation in a user's history
type Post struct {
	ID             uuid.UUID            `json:"id" db:"id"`
	UserID         uuid.UUID            `json:"userId" db:"user_id"`
	Article        ArticleSnapshot      `json:"article" db:"article"`
	Parameters     GenerationParameters `json:"parameters" db:"parameters"`
	GeneratedPosts GeneratedPosts       `json:"generatedPosts" db:"generated_posts"`
	Model          string               `json:"model" db:"model"`
	Interactions   Interactions         `json:"interactions" db:"interactions"`
	CreatedAt      time.Time            `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the Post model
func (Post) TableName() string {
	return "posts"
}

// NewPost builds a history entry from a generation
func NewPost(userID uuid.UUID, req GenerationRequest, content *GeneratedContent) *Post {
	hashtags := req.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return &Post{
		ID:     uuid.New(),
		UserID: userID,
		Article: ArticleSnapshot{
			URL:   req.Article.URL,
			Title: req.Article.Title,
			Source: ArticleSource{
				Site:   req.Article.SiteName,
				Author: req.Article.Byline,
			},
			Summary: content.Summary,
		},
		Parameters: GenerationParameters{
			Tone:      req.Tone,
			Platforms: req.Platforms,
			Hashtags:  hashtags,
			CTA:       req.CTA,
		},
		GeneratedPosts: content.Posts,
		Model:          content.Model,
		Interactions:   Interactions{Copied: []CopyEvent{}},
		CreatedAt:      time.Now().UTC(),
	}
}

// ToggleFavorite flips the favorite flag and returns the new state
func (p *Post) ToggleFavorite(now time.Time) bool {
	p.Interactions.Favorited = !p.Interactions.Favorited
	if p.Interactions.Favorited {
		p.Interactions.FavoritedAt = &now
	} else {
		p.Interactions.FavoritedAt = nil
	}
	return p.Interactions.Favorited
}

// RecordCopy appends a copy event
func (p *Post) RecordCopy(platform Platform, now time.Time) CopyEvent {
	ev := CopyEvent{Platform: platform, CopiedAt: now}
	p.Interactions.Copied = append(p.Interactions.Copied, ev)
	return ev
}
