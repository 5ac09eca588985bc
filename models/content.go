package models

import "strings"

// Tone is the voice requested for generated posts
type Tone string

const (
	ToneProfessional Tone = "Professional"
	ToneWitty        Tone = "Witty"
	TonePunchy       Tone = "Punchy"
	ToneNeutral      Tone = "Neutral"
)

// Tones returns every supported tone in display order
func Tones() []Tone {
	return []Tone{ToneProfessional, ToneWitty, TonePunchy, ToneNeutral}
}

// Valid reports whether t is a supported tone
func (t Tone) Valid() bool {
	for _, v := range Tones() {
		if t == v {
			return true
		}
	}
	return false
}

// Platform is a social network a post can be generated for
type Platform string

const (
	PlatformTwitter   Platform = "Twitter"
	PlatformLinkedIn  Platform = "LinkedIn"
	PlatformInstagram Platform = "Instagram"
)

// Platforms returns every supported platform in display order
func Platforms() []Platform {
	return []Platform{PlatformTwitter, PlatformLinkedIn, PlatformInstagram}
}

// Valid reports whether p is a supported platform
func (p Platform) Valid() bool {
	for _, v := range Platforms() {
		if p == v {
			return true
		}
	}
	return false
}

// Key returns the lower-case key used in JSON post mappings ("twitter")
func (p Platform) Key() string {
	return strings.ToLower(string(p))
}

// ParsePlatform resolves a display name or key, case-insensitively.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "twitter", "x":
		return PlatformTwitter, true
	case "linkedin":
		return PlatformLinkedIn, true
	case "instagram":
		return PlatformInstagram, true
	}
	return "", false
}

func canonical(p Platform) Platform {
	c, _ := ParsePlatform(string(p))
	return c
}

// GeneratedPosts holds the generated text per platform. Empty fields are omitted.
type GeneratedPosts struct {
	Twitter   string `json:"twitter,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// Get returns the post for a platform
func (g GeneratedPosts) Get(p Platform) string {
	switch canonical(p) {
	case PlatformTwitter:
		return g.Twitter
	case PlatformLinkedIn:
		return g.LinkedIn
	case PlatformInstagram:
		return g.Instagram
	}
	return ""
}

// Set stores the post for a platform; unknown platforms are ignored
func (g *GeneratedPosts) Set(p Platform, text string) {
	switch canonical(p) {
	case PlatformTwitter:
		g.Twitter = text
	case PlatformLinkedIn:
		g.LinkedIn = text
	case PlatformInstagram:
		g.Instagram = text
	}
}

// Article is the readable content extracted from a web page
type Article struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	TextContent string `json:"textContent"`
	Excerpt     string `json:"excerpt"`
	Byline      string `json:"byline,omitempty"`
	SiteName    string `json:"siteName"`
}

// GenerationRequest is everything needed to render the generation prompt
type GenerationRequest struct {
	Article   Article
	Tone      Tone
	Platforms []Platform
	Hashtags  []string
	CTA       string
}

// GeneratedContent is a structurally valid model response
type GeneratedContent struct {
	Summary string         `json:"summary"`
	Posts   GeneratedPosts `json:"posts"`
	Model   string         `json:"model"`
}
