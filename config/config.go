package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	OpenRouter    OpenRouterConfig
	Article       ArticleConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration // Per-request handler budget
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
// An empty Host and ConnectionString means the app runs without history persistence.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds Google OAuth2 and session settings
type AuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	CallbackURL        string
	SessionSecret      string
	SessionTTL         time.Duration
	ClientURL          string // Post-login redirect target
}

// OpenRouterConfig holds the LLM gateway settings used by the fallback coordinator
type OpenRouterConfig struct {
	APIKey           string
	BaseURL          string
	DefaultModel     string
	PreferFreeModels bool
	MaxRetries       int
	RetryDelay       time.Duration
	AppName          string
	SiteURL          string
	Timeout          time.Duration
}

// ArticleConfig holds article fetching settings
type ArticleConfig struct {
	FetchTimeout  time.Duration
	UserAgent     string
	MaxTextLength int
}

// RateLimitConfig holds per-IP limits for the /api routes
type RateLimitConfig struct {
	RequestsPerMinute int
}

// RedisConfig is optional. When URL is empty the free-model cache stays in process.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultModel             = "openai/gpt-4o-mini"
	defaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (server/.env when run from project root)
	_ = godotenv.Load("server/.env")
	_ = godotenv.Load(".env")

	clientURL := getEnv("CLIENT_URL", "http://localhost:5173")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", getEnv("NODE_ENV", "development")),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			CallbackURL:        getEnv("GOOGLE_CALLBACK_URL", "http://localhost:3001/auth/google/callback"),
			SessionSecret:      getEnv("SESSION_SECRET", ""),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
			ClientURL:          firstOrigin(clientURL),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:           getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:          getEnv("OPENROUTER_BASE_URL", defaultOpenRouterBaseURL),
			DefaultModel:     getEnv("OPENROUTER_MODEL", defaultModel),
			PreferFreeModels: os.Getenv("OPENROUTER_PREFER_FREE") == "true",
			MaxRetries:       getEnvAsInt("OPENROUTER_MAX_RETRIES", 3),
			RetryDelay:       time.Duration(getEnvAsInt("OPENROUTER_RETRY_DELAY", 1000)) * time.Millisecond,
			AppName:          getEnv("OPENROUTER_APP_NAME", "Postify"),
			SiteURL:          getEnv("OPENROUTER_SITE_URL", "http://localhost:3001"),
			Timeout:          getEnvAsDuration("OPENROUTER_TIMEOUT", 30*time.Second),
		},
		Article: ArticleConfig{
			FetchTimeout:  getEnvAsDuration("ARTICLE_FETCH_TIMEOUT", 10*time.Second),
			UserAgent:     getEnv("ARTICLE_USER_AGENT", defaultUserAgent),
			MaxTextLength: getEnvAsInt("ARTICLE_MAX_TEXT_LENGTH", 4000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 10),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "postify:"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(clientURL),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.OpenRouter.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}
	if c.OpenRouter.DefaultModel == "" {
		return fmt.Errorf("default model is required")
	}
	if c.OpenRouter.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative")
	}
	// A single completion must leave room in the request for the next model
	if c.Server.RequestTimeout > 0 && c.OpenRouter.Timeout >= c.Server.RequestTimeout {
		return fmt.Errorf("OPENROUTER_TIMEOUT (%s) must be shorter than SERVER_REQUEST_TIMEOUT (%s)",
			c.OpenRouter.Timeout, c.Server.RequestTimeout)
	}

	if c.AuthEnabled() && c.Auth.SessionSecret == "" && c.IsProduction() {
		return fmt.Errorf("SESSION_SECRET is required in production when Google auth is enabled")
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// AuthEnabled reports whether Google OAuth credentials are present
func (c *Config) AuthEnabled() bool {
	return c.Auth.GoogleClientID != "" && c.Auth.GoogleClientSecret != ""
}

// DatabaseEnabled reports whether history persistence is configured
func (c *Config) DatabaseEnabled() bool {
	return c.Database.ConnectionString != "" || c.Database.Host != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Host defaults to empty so that a bare environment runs without persistence.
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postify"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "postify"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 3001)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 3001
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// splitList splits a comma-separated env value, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstOrigin(value string) string {
	if list := splitList(value); len(list) > 0 {
		return list[0]
	}
	return ""
}
