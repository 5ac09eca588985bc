package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/repositories"
	"go.uber.org/zap"
)

const userColumns = `id, google_id, email, name, picture, preferences, total_generations,
		last_generated_at, last_login_at, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		INSERT INTO users (id, google_id, email, name, picture, preferences, total_generations,
			last_generated_at, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.executor(ctx).ExecContext(ctx, query,
		user.ID,
		user.GoogleID,
		user.Email,
		user.Name,
		user.Picture,
		prefs,
		user.Stats.TotalGenerations,
		user.Stats.LastGeneratedAt,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("email", user.Email))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByGoogleID retrieves a user by Google account subject
func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`

	user, err := scanUser(r.executor(ctx).QueryRowContext(ctx, query, googleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found for google_id: %s: %w", googleID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile refreshes the Google profile fields and last login time
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2,
		    name = $3,
		    picture = $4,
		    last_login_at = $5,
		    updated_at = $6
		WHERE id = $1
	`

	result, err := r.executor(ctx).ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Picture,
		user.LastLoginAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := expectRow(result, "user", user.ID); err != nil {
		return err
	}

	r.logger.Debug("user profile updated", zap.String("id", user.ID.String()))
	return nil
}

// UpdatePreferences replaces the user's generation defaults
func (r *UserRepository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.UserPreferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `UPDATE users SET preferences = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.executor(ctx).ExecContext(ctx, query, id, data)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	if err := expectRow(result, "user", id); err != nil {
		return err
	}

	r.logger.Debug("user preferences updated", zap.String("id", id.String()))
	return nil
}

// IncrementGenerations bumps the generation counter
func (r *UserRepository) IncrementGenerations(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET total_generations = total_generations + 1,
		    last_generated_at = $2,
		    updated_at = $2
		WHERE id = $1
	`

	result, err := r.executor(ctx).ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to increment generations: %w", err)
	}
	return expectRow(result, "user", id)
}

// WithTx returns a new repository instance bound to the transaction
func (r *UserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	return &UserRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}

func (r *UserRepository) executor(ctx context.Context) Executor {
	return boundExecutor(ctx, r.db, r.tx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var (
		prefs           []byte
		lastGeneratedAt sql.NullTime
	)

	err := row.Scan(
		&user.ID,
		&user.GoogleID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&prefs,
		&user.Stats.TotalGenerations,
		&lastGeneratedAt,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Preferences = models.DefaultPreferences()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
			return nil, fmt.Errorf("failed to decode preferences: %w", err)
		}
	}
	if lastGeneratedAt.Valid {
		t := lastGeneratedAt.Time
		user.Stats.LastGeneratedAt = &t
	}
	return user, nil
}

// expectRow turns a zero-row update into a not-found error
func expectRow(result sql.Result, entity string, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %s: %w", entity, id, repositories.ErrNotFound)
	}
	return nil
}
