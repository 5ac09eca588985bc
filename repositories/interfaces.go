package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/models"
)

// ErrNotFound is wrapped by repository lookups that match no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByGoogleID retrieves a user by Google account subject
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)

	// UpdateProfile refreshes the Google profile fields and last login time
	UpdateProfile(ctx context.Context, user *models.User) error

	// UpdatePreferences replaces the user's generation defaults
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.UserPreferences) error

	// IncrementGenerations bumps the generation counter and stamps the last generation time
	IncrementGenerations(ctx context.Context, id uuid.UUID, at time.Time) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) UserRepository
}

// PostFilter narrows a history listing
type PostFilter struct {
	UserID        uuid.UUID
	FavoritedOnly bool
	Limit         int
	Offset        int
}

// PostRepository handles generation history operations. Every lookup is
// scoped to the owning user.
type PostRepository interface {
	// Create stores a new post
	Create(ctx context.Context, post *models.Post) error

	// GetByID retrieves a post owned by userID
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Post, error)

	// List returns a page of posts, newest first
	List(ctx context.Context, filter PostFilter) ([]*models.Post, error)

	// Count returns the number of posts matching the filter, ignoring paging
	Count(ctx context.Context, filter PostFilter) (int, error)

	// AppendCopy records a copy event on a post owned by userID
	AppendCopy(ctx context.Context, id, userID uuid.UUID, event models.CopyEvent) error

	// ToggleFavorite flips the favorite flag and returns the updated interactions
	ToggleFavorite(ctx context.Context, id, userID uuid.UUID, at time.Time) (*models.Interactions, error)

	// Delete removes a post owned by userID
	Delete(ctx context.Context, id, userID uuid.UUID) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) PostRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users UserRepository
	Posts PostRepository
}
