// Package article fetches web pages and extracts the readable text used for generation.
package article

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rkbansal/postify/config"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/services"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	// MinContentLength is the amount of text below which extraction falls back to selectors
	MinContentLength = 100
	// DefaultMaxTextLength bounds the text handed to the model
	DefaultMaxTextLength = 4000

	excerptLength   = 200
	maxBodyBytes    = 5 << 20
	untitled        = "Untitled Article"
	unknownSiteName = "Unknown Site"
)

// contentSelectors are tried in order when readability finds too little text
var contentSelectors = []string{
	"article",
	`[role="main"]`,
	".content",
	".post-content",
	".entry-content",
	"main",
	".article-body",
}

// Parser extracts an article from a URL
type Parser interface {
	Parse(ctx context.Context, rawURL string) (*models.Article, error)
}

// Service implements Parser over HTTP
type Service struct {
	client        *http.Client
	userAgent     string
	maxTextLength int
	logger        *zap.Logger
}

// NewService creates an article service
func NewService(cfg config.ArticleConfig, logger *zap.Logger) *Service {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxLen := cfg.MaxTextLength
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	return &Service{
		client:        &http.Client{Timeout: timeout},
		userAgent:     cfg.UserAgent,
		maxTextLength: maxLen,
		logger:        logger,
	}
}

// Parse fetches rawURL and returns its readable content
func (s *Service) Parse(ctx context.Context, rawURL string) (*models.Article, error) {
	pageURL, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		s.logger.Warn("article fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrArticleParse.Message, err)
	}

	article, err := s.extract(body, pageURL)
	if err != nil {
		s.logger.Warn("article extraction failed", zap.String("url", rawURL), zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrArticleParse.Message, err)
	}

	s.logger.Debug("article parsed",
		zap.String("url", rawURL),
		zap.String("title", article.Title),
		zap.Int("text_length", utf8.RuneCountInString(article.TextContent)),
	)
	return article, nil
}

// ValidateURL accepts absolute http and https URLs only
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, services.ErrInvalidURL
	}
	return u, nil
}

func (s *Service) fetch(ctx context.Context, pageURL *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func (s *Service) extract(body []byte, pageURL *url.URL) (*models.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	// Readability failing is not fatal; the selector fallback still runs.
	parsed, rerr := readability.FromReader(strings.NewReader(string(body)), pageURL)
	if rerr != nil {
		s.logger.Debug("readability failed", zap.String("url", pageURL.String()), zap.Error(rerr))
	}

	text := cleanText(parsed.TextContent)
	if utf8.RuneCountInString(text) < MinContentLength {
		text = fallbackText(doc)
	}
	if text == "" {
		return nil, fmt.Errorf("no readable content")
	}
	text = truncate(text, s.maxTextLength)

	title := cleanText(parsed.Title)
	if title == "" {
		title = cleanText(doc.Find("title").First().Text())
	}
	if title == "" {
		title = untitled
	}

	siteName := cleanText(parsed.SiteName)
	if siteName == "" {
		siteName = siteNameFromHost(pageURL.Hostname())
	}

	return &models.Article{
		URL:         pageURL.String(),
		Title:       title,
		TextContent: text,
		Excerpt:     prefix(text, excerptLength),
		Byline:      cleanText(parsed.Byline),
		SiteName:    siteName,
	}, nil
}

func fallbackText(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			text := cleanText(node.Text())
			if utf8.RuneCountInString(text) > MinContentLength {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	paragraphs := make([]string, 0)
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := cleanText(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, " ")
}

// cleanText normalizes to NFC, collapses whitespace runs and trims
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimRightFunc(prefix(s, max), unicode.IsSpace) + "..."
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func siteNameFromHost(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return unknownSiteName
	}
	r, size := utf8.DecodeRuneInString(host)
	return string(unicode.ToUpper(r)) + host[size:]
}
