package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dan9191/memo-service/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrDuplicateUsername is returned when a username is already taken
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrMemoNotFound is returned when a memo is absent or owned by another user
	ErrMemoNotFound = errors.New("memo not found")
)

// uniqueViolation is the Postgres error code for unique constraint failures
const uniqueViolation = "23505"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, user.Username, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByUsername retrieves a user by username (case-sensitive exact match)
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1`
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateMemo creates a new memo owned by memo.OwnerID
func (r *Repository) CreateMemo(ctx context.Context, memo *models.Memo) error {
	query := `
		INSERT INTO memos (title, content, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, memo.Title, memo.Content, memo.OwnerID).
		Scan(&memo.ID, &memo.CreatedAt, &memo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create memo: %w", err)
	}
	return nil
}

// FindMemoByID retrieves a memo by id, restricted to the given owner
func (r *Repository) FindMemoByID(ctx context.Context, ownerID, id int64) (*models.Memo, error) {
	memo := &models.Memo{}
	query := `
		SELECT id, title, content, created_at, updated_at, owner_id
		FROM memos
		WHERE id = $1 AND owner_id = $2`
	err := r.db.QueryRowContext(ctx, query, id, ownerID).
		Scan(&memo.ID, &memo.Title, &memo.Content, &memo.CreatedAt, &memo.UpdatedAt, &memo.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find memo: %w", err)
	}
	return memo, nil
}

// UpdateMemo updates a memo's title and content, restricted to the given owner
func (r *Repository) UpdateMemo(ctx context.Context, ownerID, id int64, title, content string) (*models.Memo, error) {
	memo := &models.Memo{}
	query := `
		UPDATE memos
		SET title = $1, content = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND owner_id = $4
		RETURNING id, title, content, created_at, updated_at, owner_id`
	err := r.db.QueryRowContext(ctx, query, title, content, id, ownerID).
		Scan(&memo.ID, &memo.Title, &memo.Content, &memo.CreatedAt, &memo.UpdatedAt, &memo.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update memo: %w", err)
	}
	return memo, nil
}

// DeleteMemo deletes a memo by id, restricted to the given owner
func (r *Repository) DeleteMemo(ctx context.Context, ownerID, id int64) error {
	query := `
		DELETE FROM memos
		WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete memo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete memo: %w", err)
	}
	if affected == 0 {
		return ErrMemoNotFound
	}
	return nil
}
