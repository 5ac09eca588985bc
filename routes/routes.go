package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rkbansal/postify/app"
	"github.com/rkbansal/postify/internal/observability"
	"github.com/rkbansal/postify/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(deps.Config.Server.RequestTimeout)))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// Google OAuth2 and session endpoints
	authHandler := deps.AuthHandler()
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", authHandler.HandleLogin)
		r.Get("/google/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/user", authHandler.HandleCurrentUser)
			r.Put("/preferences", authHandler.HandleUpdatePreferences)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter(deps.Config.RateLimit.RequestsPerMinute))
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Post("/generate", deps.GenerateHandler.HandleGenerate)
		r.Get("/models", deps.ModelsHandler.HandleList)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", deps.PostsHandler.HandleList)
			r.Get("/{id}", deps.PostsHandler.HandleGet)
			r.Delete("/{id}", deps.PostsHandler.HandleDelete)
			r.Post("/{id}/copy", deps.PostsHandler.HandleCopy)
			r.Post("/{id}/favorite", deps.PostsHandler.HandleToggleFavorite)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	return r
}

// rateLimiter limits each client IP to rpm requests per minute
func rateLimiter(rpm int) func(http.Handler) http.Handler {
	return httprate.Limit(rpm, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = utils.WriteTooManyRequests(w, "Too many requests, please try again later.", nil)
		}),
	)
}

// defaultRequestTimeout applies when SERVER_REQUEST_TIMEOUT is unset
const defaultRequestTimeout = 60 * time.Second

func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultRequestTimeout
	}
	return d
}
