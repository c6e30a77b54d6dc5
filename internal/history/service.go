// Package history records completed downloads in the local database.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents one completed download.
type Entry struct {
	ID          int64         `json:"id"`
	MediaKey    string        `json:"mediaKey"`
	Title       string        `json:"title"`
	Container   string        `json:"container"`
	Transcoded  bool          `json:"transcoded"`
	SizeBytes   int64         `json:"sizeBytes"`
	Duration    time.Duration `json:"duration"`
	Destination string        `json:"destination"`
	CreatedAt   string        `json:"createdAt"`
}

// RecordInput contains the fields for recording a download.
type RecordInput struct {
	MediaKey    string
	Title       string
	Container   string
	Transcoded  bool
	SizeBytes   int64
	Duration    time.Duration
	Destination string
}

// Service provides download history management.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record stores a completed download.
func (s *Service) Record(ctx context.Context, input RecordInput) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (media_key, title, container, transcoded, size_bytes, duration_ms, destination)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		input.MediaKey,
		input.Title,
		input.Container,
		input.Transcoded,
		input.SizeBytes,
		input.Duration.Milliseconds(),
		input.Destination,
	)
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("mediaKey", input.MediaKey).
		Str("container", input.Container).
		Int64("sizeBytes", input.SizeBytes).
		Msg("Recorded download")

	return nil
}

// List returns the most recent downloads, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_key, title, container, transcoded, size_bytes, duration_ms, destination, created_at
		FROM downloads
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.MediaKey, &e.Title, &e.Container, &e.Transcoded, &e.SizeBytes, &durationMS, &e.Destination, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes all history entries.
func (s *Service) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM downloads`)
	return err
}
