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

const postColumns = `id, user_id, article_url, article_title, article_site, article_author, summary,
		tone, platforms, hashtags, cta, generated_posts, model, copied, favorited, favorited_at, created_at`

// PostRepository implements the repositories.PostRepository interface
type PostRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *DB, logger *zap.Logger) repositories.PostRepository {
	return &PostRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	platforms, err := json.Marshal(post.Parameters.Platforms)
	if err != nil {
		return fmt.Errorf("failed to encode platforms: %w", err)
	}
	hashtags, err := json.Marshal(post.Parameters.Hashtags)
	if err != nil {
		return fmt.Errorf("failed to encode hashtags: %w", err)
	}
	generated, err := json.Marshal(post.GeneratedPosts)
	if err != nil {
		return fmt.Errorf("failed to encode generated posts: %w", err)
	}
	copied, err := json.Marshal(post.Interactions.Copied)
	if err != nil {
		return fmt.Errorf("failed to encode copy events: %w", err)
	}

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = r.executor(ctx).ExecContext(ctx, query,
		post.ID,
		post.UserID,
		post.Article.URL,
		post.Article.Title,
		post.Article.Source.Site,
		post.Article.Source.Author,
		post.Article.Summary,
		post.Parameters.Tone,
		platforms,
		hashtags,
		post.Parameters.CTA,
		generated,
		post.Model,
		copied,
		post.Interactions.Favorited,
		post.Interactions.FavoritedAt,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	r.logger.Debug("post created",
		zap.String("id", post.ID.String()),
		zap.String("user_id", post.UserID.String()),
		zap.String("model", post.Model),
	)
	return nil
}

// GetByID retrieves a post owned by userID
func (r *PostRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND user_id = $2`

	post, err := scanPost(r.executor(ctx).QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post not found: %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// List returns a page of posts, newest first
func (r *PostRepository) List(ctx context.Context, filter repositories.PostFilter) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = $1 AND ($2 = false OR favorited)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.executor(ctx).QueryContext(ctx, query, filter.UserID, filter.FavoritedOnly, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*models.Post, 0, filter.Limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// Count returns the number of posts matching the filter
func (r *PostRepository) Count(ctx context.Context, filter repositories.PostFilter) (int, error) {
	query := `SELECT COUNT(*) FROM posts WHERE user_id = $1 AND ($2 = false OR favorited)`

	var total int
	if err := r.executor(ctx).QueryRowContext(ctx, query, filter.UserID, filter.FavoritedOnly).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return total, nil
}

// AppendCopy records a copy event
func (r *PostRepository) AppendCopy(ctx context.Context, id, userID uuid.UUID, event models.CopyEvent) error {
	data, err := json.Marshal([]models.CopyEvent{event})
	if err != nil {
		return fmt.Errorf("failed to encode copy event: %w", err)
	}

	query := `UPDATE posts SET copied = copied || $3::jsonb WHERE id = $1 AND user_id = $2`

	result, err := r.executor(ctx).ExecContext(ctx, query, id, userID, data)
	if err != nil {
		return fmt.Errorf("failed to record copy: %w", err)
	}
	if err := expectRow(result, "post", id); err != nil {
		return err
	}

	r.logger.Debug("post copied", zap.String("id", id.String()), zap.String("platform", string(event.Platform)))
	return nil
}

// ToggleFavorite flips the favorite flag in a single statement
func (r *PostRepository) ToggleFavorite(ctx context.Context, id, userID uuid.UUID, at time.Time) (*models.Interactions, error) {
	query := `
		UPDATE posts
		SET favorited = NOT favorited,
		    favorited_at = CASE WHEN favorited THEN NULL ELSE $3::timestamptz END
		WHERE id = $1 AND user_id = $2
		RETURNING copied, favorited, favorited_at
	`

	var (
		copied      []byte
		interaction models.Interactions
		favoritedAt sql.NullTime
	)
	err := r.executor(ctx).QueryRowContext(ctx, query, id, userID, at).Scan(&copied, &interaction.Favorited, &favoritedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post not found: %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to toggle favorite: %w", err)
	}

	if err := decodeJSON(copied, &interaction.Copied); err != nil {
		return nil, fmt.Errorf("failed to decode copy events: %w", err)
	}
	if favoritedAt.Valid {
		t := favoritedAt.Time
		interaction.FavoritedAt = &t
	}

	r.logger.Debug("post favorite toggled", zap.String("id", id.String()), zap.Bool("favorited", interaction.Favorited))
	return &interaction, nil
}

// Delete removes a post owned by userID
func (r *PostRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM posts WHERE id = $1 AND user_id = $2`

	result, err := r.executor(ctx).ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if err := expectRow(result, "post", id); err != nil {
		return err
	}

	r.logger.Debug("post deleted", zap.String("id", id.String()))
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *PostRepository) WithTx(tx repositories.Transaction) repositories.PostRepository {
	return &PostRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}

func (r *PostRepository) executor(ctx context.Context) Executor {
	return boundExecutor(ctx, r.db, r.tx)
}

func scanPost(row rowScanner) (*models.Post, error) {
	post := &models.Post{}
	var (
		platforms, hashtags, generated, copied []byte
		favoritedAt                            sql.NullTime
	)

	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Article.URL,
		&post.Article.Title,
		&post.Article.Source.Site,
		&post.Article.Source.Author,
		&post.Article.Summary,
		&post.Parameters.Tone,
		&platforms,
		&hashtags,
		&post.Parameters.CTA,
		&generated,
		&post.Model,
		&copied,
		&post.Interactions.Favorited,
		&favoritedAt,
		&post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(platforms, &post.Parameters.Platforms); err != nil {
		return nil, fmt.Errorf("failed to decode platforms: %w", err)
	}
	if err := decodeJSON(hashtags, &post.Parameters.Hashtags); err != nil {
		return nil, fmt.Errorf("failed to decode hashtags: %w", err)
	}
	if err := decodeJSON(generated, &post.GeneratedPosts); err != nil {
		return nil, fmt.Errorf("failed to decode generated posts: %w", err)
	}
	if err := decodeJSON(copied, &post.Interactions.Copied); err != nil {
		return nil, fmt.Errorf("failed to decode copy events: %w", err)
	}
	if post.Parameters.Hashtags == nil {
		post.Parameters.Hashtags = []string{}
	}
	if post.Interactions.Copied == nil {
		post.Interactions.Copied = []models.CopyEvent{}
	}
	if favoritedAt.Valid {
		t := favoritedAt.Time
		post.Interactions.FavoritedAt = &t
	}
	return post, nil
}

func decodeJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
