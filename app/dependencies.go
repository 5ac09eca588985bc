package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/rkbansal/postify/auth"
	"github.com/rkbansal/postify/config"
	"github.com/rkbansal/postify/handlers"
	"github.com/rkbansal/postify/middleware"
	"github.com/rkbansal/postify/repositories"
	"github.com/rkbansal/postify/repositories/postgres"
	"github.com/rkbansal/postify/services/article"
	"github.com/rkbansal/postify/services/posts"
	"github.com/rkbansal/postify/services/providers/openrouter"
	"github.com/rkbansal/postify/services/routing"
	"github.com/rkbansal/postify/services/users"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil when DATABASE_URL and DB_HOST are unset
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Model routing
	Gateway     *openrouter.Client
	CacheStore  routing.CatalogStore
	redisStore  *routing.RedisStore
	Health      *routing.HealthTable
	Coordinator *routing.Coordinator

	// Services
	Articles *article.Service
	Posts    *posts.Service
	Users    *users.Service

	// Auth
	Sessions       *auth.SessionManager
	AuthMiddleware *middleware.AuthMiddleware
	authHandler    *auth.Handler

	// HTTP handlers
	HealthHandler   *handlers.HealthHandler
	GenerateHandler *handlers.GenerateHandler
	PostsHandler    *handlers.PostsHandler
	ModelsHandler   *handlers.ModelsHandler
}

// AuthHandler returns the auth handler for route wiring
func (d *Dependencies) AuthHandler() *auth.Handler {
	return d.authHandler
}

// NewDependencies creates and wires up all application dependencies.
// The database and Redis are optional; their absence is logged, not fatal.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize model routing
	if err := deps.initRouting(ctx, cfg); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize model routing: %w", err)
	}

	deps.initServices(cfg)

	// Initialize auth (Google OAuth2 + session JWT)
	if err := deps.initAuth(cfg); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Bool("history_enabled", deps.Posts.HistoryEnabled()),
		zap.Bool("auth_enabled", deps.authHandler.Configured()),
		zap.Bool("prefer_free_models", cfg.OpenRouter.PreferFreeModels))
	return deps, nil
}

// initDatabase opens PostgreSQL and creates the schema. It is a no-op when no
// database is configured.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.DatabaseEnabled() {
		d.Logger.Warn("database not configured, post history disabled")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.useFactory(factory)

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// useFactory binds repositories from factory
func (d *Dependencies) useFactory(factory *postgres.RepositoryFactory) {
	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()
	d.Logger.Info("repositories initialized")
}

// initRouting builds the OpenRouter client, the free-model cache and the fallback coordinator
func (d *Dependencies) initRouting(ctx context.Context, cfg *config.Config) error {
	gateway, err := openrouter.New(openrouter.ConfigFrom(cfg.OpenRouter), d.Logger)
	if err != nil {
		return err
	}
	d.Gateway = gateway

	d.CacheStore = routing.NewMemoryStore()
	if cfg.Redis.URL != "" {
		store, err := routing.NewRedisStore(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix, routing.SystemClock)
		if err != nil {
			// The in-process cache is a complete fallback
			d.Logger.Warn("redis unavailable, using in-process model cache", zap.Error(err))
		} else {
			d.redisStore = store
			d.CacheStore = store
			d.Logger.Info("free model cache backed by redis")
		}
	}

	d.Health = routing.NewHealthTable(routing.SystemClock)
	cache := routing.NewFreeModelCache(gateway, d.CacheStore, routing.SystemClock, d.Logger)
	d.Coordinator = routing.NewCoordinator(routing.Config{
		DefaultModel:     cfg.OpenRouter.DefaultModel,
		PreferFreeModels: cfg.OpenRouter.PreferFreeModels,
		RetryDelay:       cfg.OpenRouter.RetryDelay,
	}, gateway, cache, d.Health, routing.TimerSleeper, d.Logger)
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.Articles = article.NewService(cfg.Article, d.Logger)

	var userRepo repositories.UserRepository
	if d.Repos != nil {
		userRepo = d.Repos.Users
	}
	d.Users = users.NewService(userRepo, d.Logger)
	d.Posts = posts.NewService(d.Articles, d.Coordinator, d.Repos, d.TxManager, d.Logger)
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	var provider auth.Provider
	if google := auth.NewGoogleProvider(cfg.Auth); google != nil {
		provider = google
	}

	if provider == nil {
		d.Logger.Warn("google oauth not configured, auth endpoints disabled")
		// Protected routes answer 401 and the auth endpoints answer 500
		d.AuthMiddleware = middleware.NewAuthMiddleware(middleware.DisabledValidator{}, d.Logger)
		d.authHandler = auth.NewHandler(cfg.Auth, nil, nil, d.Users, d.Logger)
		return nil
	}

	secret := cfg.Auth.SessionSecret
	if secret == "" {
		generated, err := randomSecret()
		if err != nil {
			return err
		}
		secret = generated
		d.Logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	sessions, err := auth.NewSessionManager(secret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	d.Sessions = sessions
	d.AuthMiddleware = middleware.NewAuthMiddleware(sessions, d.Logger)
	d.authHandler = auth.NewHandler(cfg.Auth, provider, sessions, d.Users, d.Logger)
	d.Logger.Info("auth handler initialized")
	return nil
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	var db *sql.DB
	if d.DB != nil {
		db = d.DB.DB
	}

	d.HealthHandler = handlers.NewHealthHandler(db, handlers.HealthInfo{
		Environment:      cfg.Environment,
		AuthConfigured:   d.authHandler.Configured(),
		PreferFreeModels: cfg.OpenRouter.PreferFreeModels,
		DefaultModel:     cfg.OpenRouter.DefaultModel,
	}, d.Logger)
	d.GenerateHandler = handlers.NewGenerateHandler(d.Posts, d.Logger)
	d.PostsHandler = handlers.NewPostsHandler(d.Posts, d.Logger)
	d.ModelsHandler = handlers.NewModelsHandler(d.Coordinator, d.Logger)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (d *Dependencies) closeQuietly(ctx context.Context) {
	if err := d.Close(ctx); err != nil {
		d.Logger.Warn("cleanup after failed initialization", zap.Error(err))
	}
}

// Close gracefully shuts down all dependencies. It is safe to call more than once.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		d.RepoFactory = nil
		d.DB = nil
	}

	if d.redisStore != nil {
		if err := d.redisStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.redisStore = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
