package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"watchtrack/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, username, password_hash, display_name, role, created_at
	          FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername returns the user with the given username, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT id, username, password_hash, display_name, role, created_at
	          FROM users WHERE username = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

// Create persists the user and assigns its ID. Returns ErrDuplicateUsername if
// the username is already taken; the unique index backs the pre-insert check.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	existing, err := r.GetByUsername(ctx, u.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateUsername
	}
	display := sql.NullString{String: u.DisplayName, Valid: u.DisplayName != ""}
	query := `INSERT INTO users (username, password_hash, display_name, role, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`
	err = r.db.QueryRowContext(ctx, query,
		u.Username, u.PasswordHash, display, u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	var display sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &display, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.DisplayName = display.String
	return u, nil
}
