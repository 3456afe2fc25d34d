package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"watchtrack/backend/internal/watchlist/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a watchlist repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `id, user_id, tmdb_id, title, status, platform, notes, watched_at, created_at`

// GetByID returns the item for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM watchlist_items WHERE id = $1`
	return scanItem(r.db.QueryRowContext(ctx, query, id))
}

// ListByUser returns the user's items, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM watchlist_items
	          WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

// Create persists the item and assigns its ID.
func (r *PostgresRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `INSERT INTO watchlist_items (user_id, tmdb_id, title, status, platform, notes, watched_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		item.UserID, item.TMDBID, item.Title, item.Status,
		nullString(item.Platform), nullString(item.Notes), item.WatchedAt, item.CreatedAt,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites the client-editable fields of the item.
func (r *PostgresRepository) Update(ctx context.Context, item *domain.Item) error {
	query := `UPDATE watchlist_items
	          SET tmdb_id = $2, title = $3, status = $4, platform = $5, notes = $6, watched_at = $7
	          WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.TMDBID, item.Title, item.Status,
		nullString(item.Platform), nullString(item.Notes), item.WatchedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the item. Deleting a missing item is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM watchlist_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row *sql.Row) (*domain.Item, error) {
	item, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func scanRow(s rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	var platform, notes sql.NullString
	var watchedAt sql.NullTime
	err := s.Scan(&item.ID, &item.UserID, &item.TMDBID, &item.Title, &item.Status,
		&platform, &notes, &watchedAt, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	item.Platform = platform.String
	item.Notes = notes.String
	if watchedAt.Valid {
		t := watchedAt.Time
		item.WatchedAt = &t
	}
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
