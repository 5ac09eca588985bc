// Package prompt renders the generation prompt and validates model output.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rkbansal/postify/models"
)

// ErrInvalidResponse is returned when model output lacks a summary or a posts object
var ErrInvalidResponse = errors.New("invalid response structure")

const systemPrompt = `You are a professional social media copywriter specializing in creating engaging, platform-specific content. Your task is to generate social media posts based on article content while maintaining accuracy and engagement.

CRITICAL REQUIREMENTS:
1. Preserve all facts from the source material - never fabricate or embellish information
2. Follow strict character limits and formatting for each platform
3. Match the requested tone while keeping content professional and engaging
4. Include relevant hashtags naturally within the content
5. Incorporate call-to-action when provided

PLATFORM SPECIFICATIONS:

Twitter:
- Maximum 280 characters (including hashtags and links)
- Concise, punchy, and engaging
- Use 1-3 relevant hashtags
- Include key insight or hook from the article

LinkedIn:
- 3-5 short, impactful lines
- Professional tone with personal insights
- Add 2-3 industry-relevant hashtags at the end
- Focus on business value or professional takeaways
- Use line breaks for readability

Instagram:
- Scannable caption with strategic line breaks
- Engaging opening hook
- 3-5 relevant hashtags integrated naturally
- Visual storytelling approach
- Include call-to-action if provided

TONE GUIDELINES:
- Professional: Authoritative, informative, business-focused
- Witty: Clever, humorous, engaging with wordplay
- Punchy: Direct, bold, attention-grabbing
- Neutral: Balanced, informative, straightforward

OUTPUT FORMAT:
Return a JSON object with this exact structure:
{
  "summary": "2-3 sentence summary of the article's main points",
  "posts": {
    "twitter": "Twitter post content (if requested)",
    "linkedin": "LinkedIn post content (if requested)",
    "instagram": "Instagram post content (if requested)"
  }
}

Only include platforms that were specifically requested. Ensure all content is factual, engaging, and platform-appropriate.`

// SystemPrompt returns the copywriter instructions sent with every attempt
func SystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt renders the article and generation requirements
func BuildUserPrompt(req models.GenerationRequest) string {
	a := req.Article

	author := a.Byline
	if strings.TrimSpace(author) == "" {
		author = "Not specified"
	}

	hashtags := "No specific hashtags provided"
	if len(req.Hashtags) > 0 {
		hashtags = "User-provided hashtags: " + strings.Join(req.Hashtags, ", ")
	}

	cta := "No specific call-to-action provided"
	if strings.TrimSpace(req.CTA) != "" {
		cta = "Call-to-action: " + req.CTA
	}

	platforms := make([]string, len(req.Platforms))
	for i, p := range req.Platforms {
		platforms[i] = string(p)
	}

	var b strings.Builder
	b.WriteString("Article Information:\n")
	fmt.Fprintf(&b, "- Title: %s\n", a.Title)
	fmt.Fprintf(&b, "- Source: %s (%s)\n", a.SiteName, a.URL)
	fmt.Fprintf(&b, "- Author: %s\n", author)
	fmt.Fprintf(&b, "- Content: %s\n\n", a.TextContent)
	b.WriteString("Generation Requirements:\n")
	fmt.Fprintf(&b, "- Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "- Target platforms: %s\n", strings.Join(platforms, ", "))
	fmt.Fprintf(&b, "- %s\n", hashtags)
	fmt.Fprintf(&b, "- %s\n\n", cta)
	b.WriteString("Please generate engaging social media posts for the specified platforms based on this article.")
	return b.String()
}

// ParseContent decodes raw model output. The result keeps only the requested
// platforms, matched case-insensitively. Model is left for the caller to set.
func ParseContent(raw string, platforms []models.Platform) (*models.GeneratedContent, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrInvalidResponse)
	}

	var decoded map[string]interface{}
	if err := sonic.UnmarshalString(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	summary, _ := decoded["summary"].(string)
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidResponse)
	}

	rawPosts, ok := decoded["posts"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing posts object", ErrInvalidResponse)
	}

	requested := make(map[models.Platform]bool, len(platforms))
	for _, p := range platforms {
		requested[p] = true
	}

	content := &models.GeneratedContent{Summary: summary}
	for key, v := range rawPosts {
		platform, ok := models.ParsePlatform(key)
		if !ok || !requested[platform] {
			continue
		}
		text, ok := v.(string)
		if !ok {
			continue
		}
		content.Posts.Set(platform, strings.TrimSpace(text))
	}
	return content, nil
}

// extractJSONObject strips markdown fences and surrounding prose
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
