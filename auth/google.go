package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/rkbansal/postify/config"
	"github.com/rkbansal/postify/services/users"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Provider runs the authorization code flow against an identity provider
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (users.Profile, error)
}

// GoogleProvider implements Provider for Google accounts
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewGoogleProvider returns nil when client credentials are not configured
func NewGoogleProvider(cfg config.AuthConfig) *GoogleProvider {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil
	}
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL returns the consent page URL
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the authorization code for a token and fetches the profile
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (users.Profile, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return users.Profile{}, fmt.Errorf("code exchange failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return users.Profile{}, fmt.Errorf("create userinfo request: %w", err)
	}
	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return users.Profile{}, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return users.Profile{}, fmt.Errorf("read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return users.Profile{}, fmt.Errorf("userinfo failed: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := sonic.Unmarshal(body, &info); err != nil {
		return users.Profile{}, fmt.Errorf("parse userinfo response: %w", err)
	}
	if info.Sub == "" {
		return users.Profile{}, fmt.Errorf("userinfo response has no subject")
	}

	return users.Profile{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
