// Package domain defines the watchlist item model.
package domain

import (
	"errors"
	"time"
)

// Watch statuses for an item.
const (
	StatusToWatch  = "to-watch"
	StatusWatching = "watching"
	StatusWatched  = "watched"
	StatusDropped  = "dropped"
)

// Item is one movie or show on a user's watchlist.
type Item struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	TMDBID    int64      `json:"tmdb_id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Platform  string     `json:"platform,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	WatchedAt *time.Time `json:"watched_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate checks the fields a client controls.
func (i *Item) Validate() error {
	if i.Title == "" {
		return errors.New("title is required")
	}
	if i.TMDBID <= 0 {
		return errors.New("tmdb_id must be positive")
	}
	switch i.Status {
	case StatusToWatch, StatusWatching, StatusWatched, StatusDropped:
		return nil
	default:
		return errors.New("status must be one of: to-watch, watching, watched, dropped")
	}
}
