package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source represents a card source, either a local path or a Git URL.
type Source struct {
	ID          int64
	UserID      int64
	Path        string
	Type        string
	LastScanned sql.NullTime
}

// InsertSource inserts a new source for a user and returns its ID.
func (s *Store) InsertSource(ctx context.Context, userID int64, path, sourceType string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO sources (user_id, path, type)
		VALUES (?, ?, ?)
	`, userID, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a user's source by its path.
func (s *Store) FindSourceByPath(ctx context.Context, userID int64, path string) (*Source, error) {
	var src Source
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, path, type, last_scanned
		FROM sources WHERE user_id = ? AND path = ?
	`, userID, path).Scan(&src.ID, &src.UserID, &src.Path, &src.Type, &src.LastScanned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &src, nil
}

// SourcesByUser retrieves all sources of a user.
func (s *Store) SourcesByUser(ctx context.Context, userID int64) ([]Source, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, path, type, last_scanned
		FROM sources WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources for user %d: %w", userID, err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.UserID, &src.Path, &src.Type, &src.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (s *Store) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, at.UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return expectAffected(res, fmt.Sprintf("source %d", sourceID))
}

// DeleteSource removes a user's source together with the cards imported
// from it.
func (s *Store) DeleteSource(ctx context.Context, userID, sourceID int64) error {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM sources
		WHERE id = ? AND user_id = ?
	`, sourceID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", sourceID, err)
	}
	return expectAffected(res, fmt.Sprintf("source %d", sourceID))
}
