package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/config"
	"github.com/rkbansal/postify/middleware"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/services"
	"github.com/rkbansal/postify/services/users"
	"github.com/rkbansal/postify/utils"
	"go.uber.org/zap"
)

const (
	// StateCookieName is the cookie name for OAuth state (CSRF)
	StateCookieName = "oauth_state"
	// SessionCookieName is the cookie name for the session token
	SessionCookieName = "session"
	stateCookieMaxAge = 600
)

// UserService is the part of the user service the auth endpoints need
type UserService interface {
	Login(ctx context.Context, p users.Profile) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.UserPreferences) (*models.UserPreferences, error)
}

// Handler handles the Google sign-in flow and the current user endpoints
type Handler struct {
	cfg      config.AuthConfig
	provider Provider
	sessions *SessionManager
	users    UserService
	logger   *zap.Logger
}

// NewHandler creates a new auth handler. provider and sessions may be nil when
// Google credentials are not configured.
func NewHandler(cfg config.AuthConfig, provider Provider, sessions *SessionManager, users UserService, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		provider: provider,
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// Configured reports whether sign-in is available
func (h *Handler) Configured() bool {
	return h.provider != nil && h.sessions != nil
}

// UserResponse is the public view of the signed-in user
type UserResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Email       string                 `json:"email"`
	Picture     string                 `json:"picture,omitempty"`
	Preferences models.UserPreferences `json:"preferences"`
	Stats       models.UserStats       `json:"stats"`
}

// PreferencesRequest is a partial preferences update
type PreferencesRequest struct {
	DefaultTone      *models.Tone      `json:"defaultTone,omitempty" validate:"omitempty,oneof=Professional Witty Punchy Neutral"`
	DefaultPlatforms []models.Platform `json:"defaultPlatforms,omitempty" validate:"omitempty,min=1,max=3,unique,dive,oneof=Twitter LinkedIn Instagram"`
	DefaultHashtags  []string          `json:"defaultHashtags,omitempty" validate:"omitempty,max=10,dive,required,max=50"`
}

// HandleLogin redirects to the Google consent page
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Configured() {
		h.logger.Error("google oauth not configured")
		_ = utils.WriteInternalServerError(w, "Authentication not configured")
		return
	}

	state, err := generateSecureState()
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to initiate login")
		return
	}

	http.SetCookie(w, h.cookie(StateCookieName, state, stateCookieMaxAge))
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the code flow, upserts the user and sets the session cookie
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.Configured() {
		_ = utils.WriteInternalServerError(w, "Authentication not configured")
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" {
		_ = utils.WriteBadRequest(w, "Missing authorization code", nil)
		return
	}
	if state == "" {
		_ = utils.WriteBadRequest(w, "Missing state parameter", nil)
		return
	}

	stateCookie, err := r.Cookie(StateCookieName)
	if err != nil || stateCookie.Value != state {
		_ = utils.WriteBadRequest(w, "Invalid or expired state", nil)
		return
	}
	http.SetCookie(w, h.cookie(StateCookieName, "", -1))

	profile, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("google sign-in failed", zap.Error(err))
		http.Redirect(w, r, h.clientRedirect("error"), http.StatusFound)
		return
	}

	user, err := h.users.Login(r.Context(), profile)
	if err != nil {
		h.logger.Error("failed to load user after sign-in", zap.Error(err))
		http.Redirect(w, r, h.clientRedirect("error"), http.StatusFound)
		return
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue session", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to create session")
		return
	}

	http.SetCookie(w, h.cookie(SessionCookieName, token, int(h.sessions.TTL().Seconds())))
	h.logger.Info("user signed in", zap.String("user_id", user.ID.String()))
	http.Redirect(w, r, h.clientRedirect("success"), http.StatusFound)
}

// HandleCurrentUser returns the signed-in user. Must run behind RequireAuth.
func (h *Handler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Not authenticated")
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	switch {
	case services.IsUnavailableError(err):
		// Without a user store the session is the only record of the user.
		claims := middleware.GetClaimsFromContext(r.Context())
		resp := UserResponse{ID: userID.String(), Preferences: models.DefaultPreferences()}
		if claims != nil {
			resp.Name = claims.Name
			resp.Email = claims.Email
		}
		_ = utils.WriteOK(w, map[string]interface{}{"user": resp})
		return
	case services.IsNotFoundError(err):
		_ = utils.WriteUnauthorized(w, "Not authenticated")
		return
	case err != nil:
		h.logger.Error("failed to load current user", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to load user")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"user": toUserResponse(user)})
}

// HandleLogout clears the session cookie
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie(SessionCookieName, "", -1))
	_ = utils.WriteMessage(w, "Logged out successfully")
}

// HandleUpdatePreferences merges the supplied fields into the user's preferences
func (h *Handler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req PreferencesRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Validation failed", map[string]interface{}{
			"fields": utils.GetValidationFields(err),
		})
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	prefs := user.Preferences
	if req.DefaultTone != nil {
		prefs.DefaultTone = *req.DefaultTone
	}
	if req.DefaultPlatforms != nil {
		prefs.DefaultPlatforms = req.DefaultPlatforms
	}
	if req.DefaultHashtags != nil {
		prefs.DefaultHashtags = req.DefaultHashtags
	}

	updated, err := h.users.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"message":     "Preferences updated successfully",
		"preferences": updated,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case services.IsUnavailableError(err):
		_ = utils.WriteServiceUnavailable(w, "User storage is not available")
	case services.IsNotFoundError(err):
		_ = utils.WriteNotFound(w, "User not found")
	default:
		h.logger.Error("user request failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to update preferences")
	}
}

func (h *Handler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(h.cfg.CallbackURL, "https"),
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) clientRedirect(outcome string) string {
	base := h.cfg.ClientURL
	if base == "" {
		base = "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("auth", outcome)
	u.RawQuery = q.Encode()
	return u.String()
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Name:        u.Name,
		Email:       u.Email,
		Picture:     u.Picture,
		Preferences: u.Preferences,
		Stats:       u.Stats,
	}
}

func generateSecureState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
